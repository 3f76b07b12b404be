package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilizeio/partitioned/schema"
)

func TestRecord(t *testing.T) {
	desc, err := schema.New("events",
		schema.Columns("id", "name", "created_at"),
		schema.PartitionKeys("created_at"),
		schema.Default("name", "unnamed"),
	)
	require.NoError(t, err)

	t.Run("New", func(t *testing.T) {
		attrs := schema.NewAttributes("name", "unnamed", "created_at", "2020-01-15")
		rec := NewRecord(desc, attrs)
		attrs.Set("name", "changed")
		assert.True(t, rec.IsNew())
		assert.Nil(t, rec.ID())
		assert.Equal(t, []string{"created_at"}, rec.Changed(), "defaults are not changes")
		assert.True(t, rec.Dirty())

		rec.Set("id", 1)
		assert.Equal(t, 1, rec.ID())
		rec.markPersisted()
		assert.False(t, rec.IsNew())
		assert.False(t, rec.Dirty())
	})

	t.Run("Loaded", func(t *testing.T) {
		rec := LoadRecord(desc, schema.NewAttributes("id", 1, "name", "signup", "created_at", "2020-01-15"))
		assert.False(t, rec.IsNew())
		assert.Empty(t, rec.Changed())

		rec.Set("name", "login").Set("created_at", "2020-02-01")
		assert.Equal(t, []string{"name", "created_at"}, rec.Changed())
		v, _ := rec.Original().Get("created_at")
		assert.Equal(t, "2020-01-15", v)
		v, _ = rec.stored().Get("created_at")
		assert.Equal(t, "2020-01-15", v, "stored values come from the last save")
		v, _ = rec.Attributes().Get("created_at")
		assert.Equal(t, "2020-02-01", v)

		rec.markDeleted()
		assert.True(t, rec.IsDeleted())
	})

	t.Run("SeedsDefaults", func(t *testing.T) {
		rec := NewRecord(desc, schema.NewAttributes("created_at", "2020-01-15"))
		name, ok := rec.Get("name")
		require.True(t, ok)
		assert.Equal(t, "unnamed", name)
		assert.Equal(t, []string{"created_at"}, rec.Changed())

		rec = NewRecord(desc, schema.NewAttributes("name", "signup"))
		name, _ = rec.Get("name")
		assert.Equal(t, "signup", name, "explicit values win over defaults")
	})

	t.Run("NilAttributes", func(t *testing.T) {
		rec := NewRecord(desc, nil)
		assert.Empty(t, rec.Changed())
		assert.Same(t, desc, rec.Descriptor())
	})
}
