package schema_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilizeio/partitioned/schema"
)

type monthRouter struct{ cols []string }

func (r monthRouter) Route(desc *schema.Descriptor, _ *schema.Attributes) (string, error) {
	return desc.Table() + "_2020_01", nil
}

func (r monthRouter) Columns() []string { return r.cols }

func eventsDescriptor(t *testing.T, opts ...schema.Option) *schema.Descriptor {
	t.Helper()
	opts = append([]schema.Option{
		schema.Columns("id", "name", "created_at"),
		schema.PartitionKeys("created_at"),
		schema.Default("name", "unnamed"),
	}, opts...)
	desc, err := schema.New("events", opts...)
	require.NoError(t, err)
	return desc
}

func TestDescriptor(t *testing.T) {
	t.Parallel()

	t.Run("Defaults", func(t *testing.T) {
		desc, err := schema.New("accounts")
		require.NoError(t, err)
		assert.Equal(t, "accounts", desc.Table())
		assert.Equal(t, "id", desc.PrimaryKey())
		assert.False(t, desc.Partitioned())
		assert.Equal(t, schema.IDIdentity, desc.IDStrategy())
		assert.False(t, desc.UsesSequence())
		assert.Equal(t, "accounts", desc.String())
	})

	t.Run("Sequence", func(t *testing.T) {
		desc := eventsDescriptor(t, schema.Sequence(""))
		assert.True(t, desc.UsesSequence())
		assert.Equal(t, "events_id_seq", desc.SequenceName())

		desc = eventsDescriptor(t, schema.Sequence("event_ids"))
		assert.Equal(t, "event_ids", desc.SequenceName())
	})

	t.Run("Accessors", func(t *testing.T) {
		desc := eventsDescriptor(t)
		assert.True(t, desc.Partitioned())
		assert.True(t, desc.IsPartitionKey("created_at"))
		assert.False(t, desc.IsPartitionKey("name"))
		assert.True(t, desc.HasColumn("name"))
		assert.False(t, desc.HasColumn("COUNT(*)"))
		v, ok := desc.DefaultOf("name")
		assert.True(t, ok)
		assert.Equal(t, "unnamed", v)
		assert.Equal(t, map[string]any{"name": "unnamed"}, desc.Defaults().Map())
		assert.Equal(t, "events(partitioned by created_at)", desc.String())
	})

	t.Run("Immutable", func(t *testing.T) {
		desc := eventsDescriptor(t)
		keys := desc.PartitionKeys()
		keys[0] = "name"
		cols := desc.Columns()
		cols[0] = "other"
		assert.Equal(t, []string{"created_at"}, desc.PartitionKeys())
		assert.Equal(t, []string{"id", "name", "created_at"}, desc.Columns())
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := schema.New("events; drop")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")

		_, err = schema.New("events", schema.Columns("id", "name"), schema.PartitionKeys("created_at"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "partition key is not a known column")

		_, err = schema.New("events", schema.Columns("name"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary key is not a known column")

		_, err = schema.New("events", schema.Columns("id", "id"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate column name")
	})

	t.Run("ForEntity", func(t *testing.T) {
		desc, err := schema.ForEntity("Event")
		require.NoError(t, err)
		assert.Equal(t, "events", desc.Table())
		assert.Equal(t, "page_views", schema.TableName("PageView"))
	})
}

func TestIDStrategy(t *testing.T) {
	t.Parallel()
	for _, s := range []schema.IDStrategy{schema.IDIdentity, schema.IDSequence, schema.IDUUID, schema.IDKSUID, schema.IDNone} {
		got, err := schema.ParseIDStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := schema.ParseIDStrategy("")
	require.NoError(t, err)
	assert.Equal(t, schema.IDIdentity, got)
	got, err = schema.ParseIDStrategy("KSUID")
	require.NoError(t, err)
	assert.Equal(t, schema.IDKSUID, got)
	_, err = schema.ParseIDStrategy("snowflake")
	assert.Error(t, err)

	assert.True(t, schema.IDSequence.ClientGenerated())
	assert.True(t, schema.IDUUID.ClientGenerated())
	assert.False(t, schema.IDIdentity.ClientGenerated())
	assert.False(t, schema.IDNone.ClientGenerated())
}

func TestAttributes(t *testing.T) {
	t.Parallel()

	t.Run("Order", func(t *testing.T) {
		a := schema.NewAttributes("name", "signup", "created_at", "2020-01-15")
		a.Set("id", 1)
		a.Set("name", "login")
		assert.Equal(t, []string{"name", "created_at", "id"}, a.Columns())
		assert.Equal(t, []any{"login", "2020-01-15", 1}, a.Values())
		assert.Equal(t, 3, a.Len())
	})

	t.Run("ZeroValue", func(t *testing.T) {
		var a schema.Attributes
		assert.True(t, a.Empty())
		a.Set("id", 1)
		assert.True(t, a.Has("id"))

		var nilAttrs *schema.Attributes
		assert.Equal(t, 0, nilAttrs.Len())
		assert.False(t, nilAttrs.Has("id"))
	})

	t.Run("Delete", func(t *testing.T) {
		a := schema.NewAttributes("id", 1, "name", "x")
		a.Delete("id")
		a.Delete("missing")
		assert.Equal(t, []string{"name"}, a.Columns())
	})

	t.Run("CloneUnionOnly", func(t *testing.T) {
		a := schema.NewAttributes("id", 1, "name", "x")
		c := a.Clone()
		c.Set("name", "y")
		v, _ := a.Get("name")
		assert.Equal(t, "x", v)

		u := a.Union(schema.NewAttributes("name", "z", "created_at", "2020-01-15"))
		assert.Equal(t, map[string]any{"id": 1, "name": "z", "created_at": "2020-01-15"}, u.Map())
		assert.Equal(t, []string{"id", "name", "created_at"}, u.Columns())

		assert.Equal(t, []string{"name"}, a.Only("name", "missing").Columns())
	})

	t.Run("Changed", func(t *testing.T) {
		base := schema.NewAttributes("id", 1, "name", "x", "created_at", "2020-01-15")
		cur := base.Clone().Set("name", "y").Set("extra", true)
		assert.Equal(t, []string{"name", "extra"}, cur.Changed(base))
	})

	t.Run("ChangedFromDefaults", func(t *testing.T) {
		desc := eventsDescriptor(t)
		a := schema.NewAttributes("name", "unnamed", "created_at", "2020-01-15", "id", nil)
		assert.Equal(t, []string{"created_at"}, a.ChangedFromDefaults(desc))
	})
}

func TestWithPartitionColumnsForced(t *testing.T) {
	t.Parallel()
	desc := eventsDescriptor(t)

	t.Run("UnchangedKeyIncluded", func(t *testing.T) {
		attrs := schema.NewAttributes("id", 1, "name", "signup", "created_at", "2020-01-15")
		ws := schema.WithPartitionColumnsForced(attrs, []string{"name"}, desc)
		assert.Equal(t, []string{"name", "created_at"}, ws.Columns())
		assert.Equal(t, []any{"signup", "2020-01-15"}, ws.Values())
	})

	t.Run("NoDuplicates", func(t *testing.T) {
		attrs := schema.NewAttributes("created_at", "2020-01-15", "name", "x")
		ws := schema.WithPartitionColumnsForced(attrs, []string{"created_at", "name"}, desc)
		assert.Equal(t, []string{"created_at", "name"}, ws.Columns())
	})

	t.Run("AbsentKeyNotInvented", func(t *testing.T) {
		attrs := schema.NewAttributes("name", "x")
		ws := schema.WithPartitionColumnsForced(attrs, nil, desc)
		assert.True(t, ws.Empty())
	})

	t.Run("Unpartitioned", func(t *testing.T) {
		plain, err := schema.New("accounts")
		require.NoError(t, err)
		attrs := schema.NewAttributes("name", "x")
		assert.True(t, schema.WithPartitionColumnsForced(attrs, nil, plain).Empty())
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	events := eventsDescriptor(t)
	accounts, err := schema.New("accounts")
	require.NoError(t, err)

	t.Run("Register", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(events, monthRouter{cols: []string{"created_at"}}))
		require.NoError(t, reg.Register(accounts, nil))
		assert.Equal(t, []string{"accounts", "events"}, reg.Tables())

		e, ok := reg.Lookup("events")
		require.True(t, ok)
		assert.True(t, e.Routable())
		assert.Equal(t, "events", e.Shared.Name())

		e, ok = reg.Lookup("accounts")
		require.True(t, ok)
		assert.False(t, e.Routable())

		_, ok = reg.Lookup("missing")
		assert.False(t, ok)

		assert.Error(t, reg.Register(accounts, nil), "duplicate registration")
		assert.Len(t, reg.Descriptors(), 2)
	})

	t.Run("Mismatch", func(t *testing.T) {
		reg := schema.NewRegistry()
		assert.Error(t, reg.Register(events, nil))
		assert.Error(t, reg.Register(accounts, monthRouter{}))
		assert.Error(t, reg.Register(events, monthRouter{cols: []string{"name"}}))
		assert.Error(t, reg.Register(nil, nil))
		assert.Panics(t, func() { reg.MustRegister(events, nil) })
	})

	t.Run("Replace", func(t *testing.T) {
		reg := schema.NewRegistry()
		reg.MustRegister(events, monthRouter{cols: []string{"created_at"}})
		old, _ := reg.Lookup("events")

		e, err := schema.NewEntry(events, monthRouter{cols: []string{"created_at"}})
		require.NoError(t, err)
		a, err := schema.NewEntry(accounts, nil)
		require.NoError(t, err)
		require.NoError(t, reg.Replace(e, a))

		cur, _ := reg.Lookup("events")
		assert.Same(t, old.Shared, cur.Shared)
		assert.Equal(t, []string{"accounts", "events"}, reg.Tables())
		assert.Error(t, reg.Replace(a, a))
	})
}

func TestSharedTable(t *testing.T) {
	t.Parallel()

	t.Run("Restore", func(t *testing.T) {
		s := schema.NewSharedTable("events")
		release := s.Borrow("events_2020_01")
		release()
		release()
		assert.Equal(t, "events", s.Name())
	})

	t.Run("RestoreOnError", func(t *testing.T) {
		s := schema.NewSharedTable("events")
		op := func() (err error) {
			release := s.Borrow("events_2020_01")
			defer release()
			return errors.New("exec failed")
		}
		require.Error(t, op())
		assert.Equal(t, "events", s.Name())
	})

	t.Run("RestoreOnPanic", func(t *testing.T) {
		s := schema.NewSharedTable("events")
		assert.Panics(t, func() {
			release := s.Borrow("events_2020_01")
			defer release()
			panic("boom")
		})
		assert.Equal(t, "events", s.Name())
	})

	t.Run("ObserversWait", func(t *testing.T) {
		s := schema.NewSharedTable("events")
		release := s.Borrow("events_2020_01")
		seen := make(chan string, 1)
		go func() { seen <- s.Name() }()
		select {
		case name := <-seen:
			t.Fatalf("observer read %q during borrow", name)
		case <-time.After(20 * time.Millisecond):
		}
		release()
		assert.Equal(t, "events", <-seen)
	})

	t.Run("Concurrent", func(t *testing.T) {
		s := schema.NewSharedTable("events")
		var wg sync.WaitGroup
		for _, name := range []string{"events_2020_01", "events_2020_02", "events_2020_03"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					release := s.Borrow(name)
					release()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, "events", s.Name())
	})
}

func TestValidateDescriptors(t *testing.T) {
	t.Parallel()
	events := eventsDescriptor(t)
	res := schema.ValidateDescriptors([]*schema.Descriptor{events, events})
	require.True(t, res.HasErrors())
	assert.Contains(t, res.String(), "duplicate table name")
	assert.Error(t, res.Err())

	pkKey, err := schema.New("events", schema.PartitionKeys("id"))
	require.NoError(t, err)
	res = schema.ValidateDescriptor(pkKey)
	assert.False(t, res.HasErrors())
	assert.True(t, res.HasWarnings())

	res = schema.ValidateDescriptors(nil)
	assert.NoError(t, res.Err())
	assert.Equal(t, "No issues found", res.String())
}
