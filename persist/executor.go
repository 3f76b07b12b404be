package persist

import (
	"context"
	stdsql "database/sql"

	"github.com/mobilizeio/partitioned"
	"github.com/mobilizeio/partitioned/dialect"
	"github.com/mobilizeio/partitioned/dialect/sql"
	"github.com/mobilizeio/partitioned/dialect/sql/sqlerr"
	"github.com/mobilizeio/partitioned/schema"
	"github.com/mobilizeio/partitioned/statement"
)

// Result is the outcome of one executed statement.
type Result struct {
	// RowsAffected is the number of inserted, updated or deleted rows.
	RowsAffected int64
	// GeneratedID is the database generated key of an insert that
	// requested it, or nil.
	GeneratedID any
	// Rows holds the rows of a select.
	Rows []*schema.Attributes
}

// Executor runs statements. Implementations must not retry, and must
// return the database error unmodified or wrapped.
type Executor interface {
	Execute(ctx context.Context, st statement.Statement) (Result, error)
}

// SQLExecutor executes statements on a dialect.ExecQuerier, such as a
// dialect/sql.Driver or a transaction.
type SQLExecutor struct {
	conn    dialect.ExecQuerier
	dialect string
}

// NewSQLExecutor returns an executor rendering statements for dialectName.
func NewSQLExecutor(conn dialect.ExecQuerier, dialectName string) *SQLExecutor {
	return &SQLExecutor{conn: conn, dialect: dialectName}
}

// Dialect returns the dialect statements are rendered for.
func (e *SQLExecutor) Dialect() string { return e.dialect }

// Execute implements Executor. Driver errors are returned as
// *partitioned.ExecError; constraint violations additionally match
// partitioned.IsConstraintError.
func (e *SQLExecutor) Execute(ctx context.Context, st statement.Statement) (Result, error) {
	query, args, err := st.Query(e.dialect)
	if err != nil {
		return Result{}, partitioned.NewMalformedStatementError(st.Kind().String(), st.Table(), err.Error())
	}
	switch st := st.(type) {
	case *statement.Select:
		return e.query(ctx, st.Table(), query, args)
	case *statement.Insert:
		if st.Returning() != "" && e.dialect != dialect.MySQL {
			res, err := e.query(ctx, st.Table(), query, args)
			if err != nil {
				return Result{}, err
			}
			out := Result{RowsAffected: int64(len(res.Rows))}
			if len(res.Rows) > 0 {
				out.GeneratedID, _ = res.Rows[0].Get(st.Returning())
			}
			return out, nil
		}
		res, err := e.exec(ctx, st.Table(), query, args)
		if err != nil {
			return Result{}, err
		}
		out := Result{}
		if out.RowsAffected, err = res.RowsAffected(); err != nil {
			return Result{}, e.wrap(st.Table(), err)
		}
		if st.Returning() != "" {
			id, err := res.LastInsertId()
			if err != nil {
				return Result{}, e.wrap(st.Table(), err)
			}
			out.GeneratedID = id
		}
		return out, nil
	default:
		res, err := e.exec(ctx, st.Table(), query, args)
		if err != nil {
			return Result{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Result{}, e.wrap(st.Table(), err)
		}
		return Result{RowsAffected: n}, nil
	}
}

func (e *SQLExecutor) exec(ctx context.Context, table, query string, args []any) (stdsql.Result, error) {
	var res stdsql.Result
	if err := e.conn.Exec(ctx, query, args, &res); err != nil {
		return nil, e.wrap(table, err)
	}
	return res, nil
}

func (e *SQLExecutor) query(ctx context.Context, table, query string, args []any) (Result, error) {
	rows := &sql.Rows{}
	if err := e.conn.Query(ctx, query, args, rows); err != nil {
		return Result{}, e.wrap(table, err)
	}
	columns, values, err := sql.ScanRows(rows)
	if err != nil {
		return Result{}, e.wrap(table, err)
	}
	out := Result{Rows: make([]*schema.Attributes, len(values))}
	for i, vs := range values {
		attrs := &schema.Attributes{}
		for j, c := range columns {
			attrs.Set(c, vs[j])
		}
		out.Rows[i] = attrs
	}
	return out, nil
}

func (e *SQLExecutor) wrap(table string, err error) error {
	if sqlerr.IsConstraintError(err) {
		err = partitioned.NewConstraintError(sqlerr.Classify(err).String()+": "+err.Error(), err)
	}
	return partitioned.NewExecError(table, err)
}
