package persist

import (
	"github.com/mobilizeio/partitioned/schema"
)

// Record is one row of an entity together with its persistence state: the
// values last read from or written to the database, and the current values.
// A Record is not safe for concurrent use.
type Record struct {
	desc     *schema.Descriptor
	original *schema.Attributes
	current  *schema.Attributes
	isNew    bool
	deleted  bool
}

// NewRecord returns a record that has not been persisted yet. Columns with a
// schema default that attrs leaves unset start with the default, so an
// omitted partition key routes to the default's partition. attrs may be nil.
func NewRecord(desc *schema.Descriptor, attrs *schema.Attributes) *Record {
	cur := &schema.Attributes{}
	if attrs != nil {
		cur = attrs.Clone()
	}
	defaults := desc.Defaults()
	for _, c := range defaults.Columns() {
		if !cur.Has(c) {
			v, _ := defaults.Get(c)
			cur.Set(c, v)
		}
	}
	return &Record{desc: desc, original: &schema.Attributes{}, current: cur, isNew: true}
}

// LoadRecord returns a record for a row that exists in the database.
func LoadRecord(desc *schema.Descriptor, attrs *schema.Attributes) *Record {
	return &Record{desc: desc, original: attrs.Clone(), current: attrs.Clone()}
}

// Descriptor returns the entity descriptor.
func (r *Record) Descriptor() *schema.Descriptor { return r.desc }

// Set sets a column value.
func (r *Record) Set(column string, value any) *Record {
	r.current.Set(column, value)
	return r
}

// Get returns a column value.
func (r *Record) Get(column string) (any, bool) {
	return r.current.Get(column)
}

// ID returns the primary-key value, or nil.
func (r *Record) ID() any {
	v, _ := r.current.Get(r.desc.PrimaryKey())
	return v
}

// IsNew reports if the record was never persisted.
func (r *Record) IsNew() bool { return r.isNew }

// IsDeleted reports if the record was deleted.
func (r *Record) IsDeleted() bool { return r.deleted }

// Attributes returns a copy of the current values.
func (r *Record) Attributes() *schema.Attributes { return r.current.Clone() }

// Original returns a copy of the persisted values.
func (r *Record) Original() *schema.Attributes { return r.original.Clone() }

// Changed returns the columns to write on the next save. For new records
// these are the columns whose value differs from the schema default; for
// persisted records, the columns changed since the last save.
func (r *Record) Changed() []string {
	if r.isNew {
		return r.current.ChangedFromDefaults(r.desc)
	}
	return r.current.Changed(r.original)
}

// Dirty reports if the record has unsaved changes.
func (r *Record) Dirty() bool {
	return len(r.Changed()) > 0
}

// stored returns the values identifying the row in the database: the
// persisted values, completed with current values for columns never read.
func (r *Record) stored() *schema.Attributes {
	return r.current.Union(r.original)
}

func (r *Record) markPersisted() {
	r.original = r.current.Clone()
	r.isNew = false
}

func (r *Record) markDeleted() {
	r.deleted = true
}
