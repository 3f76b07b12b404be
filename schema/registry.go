package schema

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Router computes the physical table of an operation from its attributes.
// Only entity types stored in partition tables have one.
type Router interface {
	Route(desc *Descriptor, attrs *Attributes) (string, error)
}

// columnser is implemented by routers that know which columns they read.
type columnser interface {
	Columns() []string
}

// Entry is a registered entity type.
type Entry struct {
	Descriptor *Descriptor
	// Router is nil for entity types stored in their logical table.
	Router Router
	// Shared is the legacy per-type table name. It reads the logical table
	// name outside of an operation.
	Shared *SharedTable
}

// Routable reports if operations on the entry go through the router.
func (e *Entry) Routable() bool { return e.Router != nil }

// NewEntry checks that desc and router agree and returns the entry.
func NewEntry(desc *Descriptor, router Router) (*Entry, error) {
	switch {
	case desc == nil:
		return nil, fmt.Errorf("schema: nil descriptor")
	case router == nil && desc.Partitioned():
		return nil, fmt.Errorf("schema: %s has partition keys but no router", desc.Table())
	case router != nil && !desc.Partitioned():
		return nil, fmt.Errorf("schema: %s has a router but no partition keys", desc.Table())
	}
	if c, ok := router.(columnser); ok {
		want, got := desc.PartitionKeys(), c.Columns()
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			return nil, fmt.Errorf("schema: %s partition keys %v do not match router columns %v", desc.Table(), desc.PartitionKeys(), c.Columns())
		}
	}
	return &Entry{Descriptor: desc, Router: router, Shared: NewSharedTable(desc.Table())}, nil
}

// Registry holds the registered entity types by logical table name.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds an entity type. Pass a nil router for entity types that are
// not partitioned.
func (r *Registry) Register(desc *Descriptor, router Router) error {
	e, err := NewEntry(desc, router)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[desc.Table()]; ok {
		return fmt.Errorf("schema: %s already registered", desc.Table())
	}
	r.entries[desc.Table()] = e
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(desc *Descriptor, router Router) {
	if err := r.Register(desc, router); err != nil {
		panic(err)
	}
}

// Lookup returns the entry of a logical table.
func (r *Registry) Lookup(table string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[table]
	return e, ok
}

// Replace swaps all entries at once. Entries that keep their table reuse
// the existing shared table, so observers keep a stable handle.
func (r *Registry) Replace(entries ...*Entry) error {
	next := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		t := e.Descriptor.Table()
		if _, ok := next[t]; ok {
			return fmt.Errorf("schema: %s registered twice", t)
		}
		next[t] = e
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, e := range next {
		if old, ok := r.entries[t]; ok {
			e.Shared = old.Shared
		}
	}
	r.entries = next
	return nil
}

// Tables returns the registered logical tables, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tables := make([]string, 0, len(r.entries))
	for t := range r.entries {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Descriptors returns the registered descriptors, sorted by table.
func (r *Registry) Descriptors() []*Descriptor {
	tables := r.Tables()
	descs := make([]*Descriptor, 0, len(tables))
	for _, t := range tables {
		if e, ok := r.Lookup(t); ok {
			descs = append(descs, e.Descriptor)
		}
	}
	return descs
}
