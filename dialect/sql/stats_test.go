package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/mobilizeio/partitioned/dialect"
)

func TestTargetOf(t *testing.T) {
	tests := []struct {
		query, verb, table string
	}{
		{`INSERT INTO "events_2020_01" ("id") VALUES ($1)`, "insert", "events_2020_01"},
		{"UPDATE `events_2020_02` SET `name` = ?", "update", "events_2020_02"},
		{`DELETE FROM "events_2020_01" WHERE "id" = $1`, "delete", "events_2020_01"},
		{`SELECT "events_2020_01"."id" FROM "events_2020_01" WHERE "events_2020_01"."id" = $1`, "select", "events_2020_01"},
		{"select count(*)\nfrom events", "select", "events"},
		{"SELECT nextval('events_id_seq')", "other", ""},
	}
	for _, tt := range tests {
		verb, table := TargetOf(tt.query)
		assert.Equal(t, tt.verb, verb, tt.query)
		assert.Equal(t, tt.table, table, tt.query)
	}
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	scope := tally.NewTestScope("", nil)
	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.Postgres, db),
		WithStatsScope(scope),
		WithSlowThreshold(-1),
		WithSlowQueryHook(func(_ context.Context, table, _ string, _ []any, _ time.Duration) {
			slow = append(slow, table)
		}),
	)

	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("DELETE").WillReturnError(errors.New("boom"))

	ctx := context.Background()
	require.NoError(t, drv.Exec(ctx, `UPDATE "events_2020_01" SET "name" = $1`, []any{"a"}, nil))
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, `SELECT "id" FROM "events_2020_02"`, []any{}, rows))
	require.NoError(t, rows.Close())
	require.Error(t, drv.Exec(ctx, `DELETE FROM "events_2020_01"`, []any{}, nil))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"events_2020_01", "events_2020_02"}, drv.TableNames())
	stats := drv.Tables()
	assert.EqualValues(t, 2, stats["events_2020_01"].Statements)
	assert.EqualValues(t, 1, stats["events_2020_01"].Failures)
	assert.EqualValues(t, 2, stats["events_2020_01"].Slow)
	assert.EqualValues(t, 1, stats["events_2020_02"].Statements)
	assert.Zero(t, stats["events_2020_02"].Failures)
	assert.Equal(t, []string{"events_2020_01", "events_2020_02", "events_2020_01"}, slow)

	counters := scope.Snapshot().Counters()
	require.Contains(t, counters, "sql.statements+table=events_2020_01,verb=update")
	assert.EqualValues(t, 1, counters["sql.statements+table=events_2020_01,verb=update"].Value())
	assert.EqualValues(t, 1, counters["sql.failures+table=events_2020_01,verb=delete"].Value())
	assert.EqualValues(t, 1, counters["sql.statements+table=events_2020_02,verb=select"].Value())
}

func TestStatsDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := NewStatsDriver(OpenDB(dialect.Postgres, db))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, `DELETE FROM "events_2020_01" WHERE "id" = $1`, []any{1}, nil))
	require.NoError(t, tx.Exec(ctx, `INSERT INTO "events_2020_02" DEFAULT VALUES`, []any{}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{"events_2020_01", "events_2020_02"}, drv.TableNames())
	assert.EqualValues(t, 1, drv.Tables()["events_2020_02"].Statements)
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := NewDebugDriver(OpenDB(dialect.SQLite, db), nil)
	assert.Equal(t, dialect.SQLite, drv.Dialect())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectRollback()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	rows := &Rows{}
	require.NoError(t, tx.Query(context.Background(), "SELECT id FROM events", []any{}, rows))
	require.NoError(t, rows.Close())
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
