package sql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilizeio/partitioned/dialect"
)

// TestOpenDB tests the OpenDB function with different dialects.
func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
	}{
		{"Postgres", dialect.Postgres},
		{"MySQL", dialect.MySQL},
		{"SQLite", dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
		})
	}
}

func TestDialectOf(t *testing.T) {
	assert.Equal(t, dialect.Postgres, DialectOf("postgres"))
	assert.Equal(t, dialect.Postgres, DialectOf("pgx"))
	assert.Equal(t, dialect.MySQL, DialectOf("mysql"))
	assert.Equal(t, dialect.SQLite, DialectOf("sqlite"))
	assert.Equal(t, dialect.SQLite, DialectOf("sqlite3"))
	assert.Equal(t, "oracle", DialectOf("oracle"))
}

// TestDriverQuery tests query operations.
func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("query_with_args", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT "name" FROM "events_2020_01" WHERE "id" = $1`)).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("signup"))

		rows := &Rows{}
		err := drv.Query(context.Background(), `SELECT "name" FROM "events_2020_01" WHERE "id" = $1`, []any{1}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		expectedErr := errors.New("database error")
		mock.ExpectQuery("SELECT").WillReturnError(expectedErr)

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT", []any{}, rows)
		require.ErrorIs(t, err, expectedErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_destination", func(t *testing.T) {
		var rows sql.Rows
		err := drv.Query(context.Background(), "SELECT 1", []any{}, &rows)
		require.Error(t, err)
	})

	t.Run("invalid_args", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", 1, &Rows{})
		require.Error(t, err)
	})
}

// TestDriverExec tests execute operations.
func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("exec_with_result", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "events_2020_01" SET "name" = $1 WHERE "id" = $2`)).
			WithArgs("signup", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		var res Result
		err := drv.Exec(context.Background(), `UPDATE "events_2020_01" SET "name" = $1 WHERE "id" = $2`, []any{"signup", 1}, &res)
		require.NoError(t, err)
		n, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_without_result", func(t *testing.T) {
		mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
		err := drv.Exec(context.Background(), `DELETE FROM "events_2020_01" WHERE "id" = $1`, []any{1}, nil)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_error", func(t *testing.T) {
		expectedErr := errors.New("constraint violation")
		mock.ExpectExec("DELETE").WillReturnError(expectedErr)

		err := drv.Exec(context.Background(), "DELETE FROM events", []any{}, nil)
		require.ErrorIs(t, err, expectedErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_destination", func(t *testing.T) {
		var n int
		err := drv.Exec(context.Background(), "DELETE FROM events", []any{}, &n)
		require.Error(t, err)
	})
}

// TestDriverTransaction tests transaction operations.
func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("successful_commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), `DELETE FROM "events_2020_01" WHERE "id" = $1`, []any{1}, nil))
		require.NoError(t, tx.Exec(context.Background(), `INSERT INTO "events_2020_02" ("id") VALUES ($1)`, []any{1}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.Error(t, tx.Exec(context.Background(), `INSERT INTO "events" DEFAULT VALUES`, []any{}, nil))
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNopTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tx := dialect.NopTx(OpenDB(dialect.Postgres, db))
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, tx.Exec(context.Background(), "DELETE FROM events", []any{}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanMaps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "signup").
			AddRow(int64(2), nil))

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT id, name FROM events_2020_01", []any{}, rows))
	got, err := ScanMaps(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0]["id"])
	assert.Equal(t, "signup", got[0]["name"])
	assert.Nil(t, got[1]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.SQLite, db)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"name", "id"}).
			AddRow([]byte("signup"), int64(1)))

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT name, id FROM events_2020_01", []any{}, rows))
	columns, values, err := ScanRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "id"}, columns)
	assert.Equal(t, [][]any{{[]byte("signup"), int64(1)}}, values)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanInt64(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("value", func(t *testing.T) {
		mock.ExpectQuery("SELECT nextval").WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(42)))
		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT nextval($1)", []any{"events_id_seq"}, rows))
		n, err := ScanInt64(rows)
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("no_rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT nextval").WillReturnRows(sqlmock.NewRows([]string{"nextval"}))
		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT nextval($1)", []any{"events_id_seq"}, rows))
		_, err := ScanInt64(rows)
		require.ErrorIs(t, err, sql.ErrNoRows)
	})
	require.NoError(t, mock.ExpectationsWereMet())
}
