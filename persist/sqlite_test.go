package persist_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mobilizeio/partitioned"
	"github.com/mobilizeio/partitioned/dialect/sql"
	"github.com/mobilizeio/partitioned/partition"
	"github.com/mobilizeio/partitioned/persist"
	"github.com/mobilizeio/partitioned/schema"
	"github.com/mobilizeio/partitioned/statement"
)

func openSQLite(t *testing.T) *sql.Driver {
	t.Helper()
	drv, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	for _, table := range []string{"events", "events_2020_01", "events_2020_02"} {
		_, err := drv.DB().Exec(`CREATE TABLE ` + table + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL DEFAULT 'unnamed',
			created_at TEXT NOT NULL
		)`)
		require.NoError(t, err)
	}
	return drv
}

func count(t *testing.T, drv *sql.Driver, table string) int {
	t.Helper()
	var n int
	require.NoError(t, drv.DB().QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)

	events, err := schema.New("events",
		schema.Columns("id", "name", "created_at"),
		schema.PartitionKeys("created_at"),
		schema.Default("name", "unnamed"),
	)
	require.NoError(t, err)
	reg := schema.NewRegistry()
	reg.MustRegister(events, partition.By(partition.Monthly("created_at")))
	coord := persist.New(drv, reg, persist.WithPartitionMoves())

	jan := persist.NewRecord(events, schema.NewAttributes("name", "signup", "created_at", "2020-01-15"))
	id, err := coord.Create(ctx, jan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	feb := persist.NewRecord(events, schema.NewAttributes("id", int64(100), "name", "unnamed", "created_at", "2020-02-03"))
	febID, err := coord.Create(ctx, feb)
	require.NoError(t, err)
	assert.Equal(t, int64(100), febID)

	assert.Equal(t, 1, count(t, drv, "events_2020_01"))
	assert.Equal(t, 1, count(t, drv, "events_2020_02"))
	assert.Zero(t, count(t, drv, "events"))

	jan.Set("name", "login")
	n, err := coord.Update(ctx, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	found, err := coord.Find(ctx, events, schema.NewAttributes("id", id, "created_at", "2020-01-15"))
	require.NoError(t, err)
	name, _ := found.Get("name")
	assert.Equal(t, "login", name)

	rows, err := coord.Select(ctx, events, statement.Criteria{
		Columns: []string{"name"},
		Where:   []statement.Constraint{statement.EQ("created_at", "2020-02-03")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	name, _ = rows[0].Get("name")
	assert.Equal(t, "unnamed", name)

	found.Set("created_at", "2020-02-20")
	_, err = coord.Update(ctx, found)
	require.NoError(t, err)
	assert.Zero(t, count(t, drv, "events_2020_01"))
	assert.Equal(t, 2, count(t, drv, "events_2020_02"))

	n, err = coord.Delete(ctx, found)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, count(t, drv, "events_2020_02"))

	_, err = coord.Find(ctx, events, schema.NewAttributes("id", id, "created_at", "2020-02-20"))
	assert.True(t, partitioned.IsNotFound(err))
}

func TestSQLiteConstraintError(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)

	events, err := schema.New("events",
		schema.Columns("id", "name", "created_at"),
		schema.PartitionKeys("created_at"),
		schema.ID(schema.IDNone),
	)
	require.NoError(t, err)
	reg := schema.NewRegistry()
	reg.MustRegister(events, partition.By(partition.Monthly("created_at")))
	coord := persist.New(drv, reg)

	rec := func() *persist.Record {
		return persist.NewRecord(events, schema.NewAttributes("id", 7, "name", "a", "created_at", "2020-01-15"))
	}
	_, err = coord.Create(ctx, rec())
	require.NoError(t, err)
	_, err = coord.Create(ctx, rec())
	require.Error(t, err)
	assert.True(t, partitioned.IsConstraintError(err))
	assert.True(t, partitioned.IsExecError(err))
	assert.False(t, partitioned.IsRoutingError(err))
}
