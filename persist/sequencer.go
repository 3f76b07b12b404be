package persist

import (
	"context"
	"fmt"

	"github.com/mobilizeio/partitioned/dialect"
	"github.com/mobilizeio/partitioned/dialect/sql"
)

// Sequencer fetches the next value of a database sequence.
type Sequencer interface {
	Next(ctx context.Context, sequence string) (int64, error)
}

// SQLSequencer reads sequences with nextval. Only PostgreSQL has sequences
// among the supported dialects.
type SQLSequencer struct {
	conn    dialect.ExecQuerier
	dialect string
}

// NewSequencer returns a Sequencer reading from conn.
func NewSequencer(conn dialect.ExecQuerier, dialectName string) *SQLSequencer {
	return &SQLSequencer{conn: conn, dialect: dialectName}
}

// Next implements Sequencer.
func (s *SQLSequencer) Next(ctx context.Context, sequence string) (int64, error) {
	if s.dialect != dialect.Postgres {
		return 0, fmt.Errorf("persist: sequences are not supported by dialect %q", s.dialect)
	}
	rows := &sql.Rows{}
	if err := s.conn.Query(ctx, "SELECT nextval($1)", []any{sequence}, rows); err != nil {
		return 0, fmt.Errorf("persist: next value of %s: %w", sequence, err)
	}
	n, err := sql.ScanInt64(rows)
	if err != nil {
		return 0, fmt.Errorf("persist: next value of %s: %w", sequence, err)
	}
	return n, nil
}
