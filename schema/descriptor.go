package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"
)

// IDStrategy defines how the primary key of a new record is produced.
type IDStrategy int

// ID strategies.
const (
	// IDIdentity lets the database generate the key (serial, identity or
	// AUTO_INCREMENT columns). The key is read back after the insert.
	IDIdentity IDStrategy = iota
	// IDSequence prefetches the key from a database sequence before the
	// insert, so the key is part of the inserted columns.
	IDSequence
	// IDUUID generates a random UUID (v4) on the client.
	IDUUID
	// IDKSUID generates a K-sortable unique id on the client.
	IDKSUID
	// IDNone expects the caller to provide the key.
	IDNone
)

var idStrategyNames = [...]string{
	IDIdentity: "identity",
	IDSequence: "sequence",
	IDUUID:     "uuid",
	IDKSUID:    "ksuid",
	IDNone:     "none",
}

// String returns the strategy name as used in configuration files.
func (s IDStrategy) String() string {
	if s >= 0 && int(s) < len(idStrategyNames) {
		return idStrategyNames[s]
	}
	return fmt.Sprintf("IDStrategy(%d)", int(s))
}

// ParseIDStrategy returns the strategy for the given name.
// The empty string maps to IDIdentity.
func ParseIDStrategy(name string) (IDStrategy, error) {
	if name == "" {
		return IDIdentity, nil
	}
	for i, n := range idStrategyNames {
		if strings.EqualFold(n, name) {
			return IDStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("schema: unknown id strategy %q", name)
}

// ClientGenerated reports if the key is produced before the insert is built.
func (s IDStrategy) ClientGenerated() bool {
	return s == IDSequence || s == IDUUID || s == IDKSUID
}

// Descriptor is the static metadata of one entity type. It is immutable
// after New returns and safe for concurrent use.
type Descriptor struct {
	table         string
	primaryKey    string
	partitionKeys []string
	columns       []string
	defaults      map[string]any
	sequence      string
	idStrategy    IDStrategy
}

// Option configures a Descriptor.
type Option func(*Descriptor)

// PrimaryKey sets the primary-key column. Defaults to "id".
func PrimaryKey(column string) Option {
	return func(d *Descriptor) {
		d.primaryKey = column
	}
}

// PartitionKeys sets the ordered partition-key columns.
func PartitionKeys(columns ...string) Option {
	return func(d *Descriptor) {
		d.partitionKeys = append(d.partitionKeys, columns...)
	}
}

// Columns sets the known columns of the entity, in table order.
func Columns(columns ...string) Option {
	return func(d *Descriptor) {
		d.columns = append(d.columns, columns...)
	}
}

// Default sets the schema default value of a column.
func Default(column string, value any) Option {
	return func(d *Descriptor) {
		if d.defaults == nil {
			d.defaults = make(map[string]any)
		}
		d.defaults[column] = value
	}
}

// Sequence makes the entity prefetch its primary key from the named
// sequence. An empty name uses "<table>_<pk>_seq".
func Sequence(name string) Option {
	return func(d *Descriptor) {
		d.sequence = name
		d.idStrategy = IDSequence
	}
}

// ID sets the id generation strategy.
func ID(strategy IDStrategy) Option {
	return func(d *Descriptor) {
		d.idStrategy = strategy
	}
}

// New returns a validated descriptor for the given logical table.
func New(table string, opts ...Option) (*Descriptor, error) {
	d := &Descriptor{table: table, primaryKey: "id"}
	for _, opt := range opts {
		opt(d)
	}
	if d.idStrategy == IDSequence && d.sequence == "" {
		d.sequence = d.table + "_" + d.primaryKey + "_seq"
	}
	if res := ValidateDescriptor(d); res.HasErrors() {
		return nil, res.Err()
	}
	return d, nil
}

// ForEntity returns a descriptor whose logical table is derived from the
// entity name, e.g. "PageView" is stored in "page_views".
func ForEntity(entity string, opts ...Option) (*Descriptor, error) {
	return New(TableName(entity), opts...)
}

// TableName returns the conventional table name of an entity.
func TableName(entity string) string {
	return inflect.Underscore(inflect.Pluralize(entity))
}

// Table returns the logical table name.
func (d *Descriptor) Table() string { return d.table }

// PrimaryKey returns the primary-key column.
func (d *Descriptor) PrimaryKey() string { return d.primaryKey }

// PartitionKeys returns a copy of the partition-key columns.
func (d *Descriptor) PartitionKeys() []string { return slices.Clone(d.partitionKeys) }

// Columns returns a copy of the known columns.
func (d *Descriptor) Columns() []string { return slices.Clone(d.columns) }

// Partitioned reports if the entity is stored in partition tables.
func (d *Descriptor) Partitioned() bool { return len(d.partitionKeys) > 0 }

// IsPartitionKey reports if column is one of the partition-key columns.
func (d *Descriptor) IsPartitionKey(column string) bool {
	return slices.Contains(d.partitionKeys, column)
}

// HasColumn reports if column is a known column of the entity.
// The primary key and partition keys are always known.
func (d *Descriptor) HasColumn(column string) bool {
	return column == d.primaryKey || slices.Contains(d.columns, column) || d.IsPartitionKey(column)
}

// DefaultOf returns the schema default of a column.
func (d *Descriptor) DefaultOf(column string) (any, bool) {
	v, ok := d.defaults[column]
	return v, ok
}

// Defaults returns the schema defaults, ordered by column name.
func (d *Descriptor) Defaults() *Attributes {
	a := &Attributes{}
	for _, c := range slices.Sorted(maps.Keys(d.defaults)) {
		a.Set(c, d.defaults[c])
	}
	return a
}

// UsesSequence reports if the primary key is prefetched from a sequence.
func (d *Descriptor) UsesSequence() bool { return d.idStrategy == IDSequence }

// SequenceName returns the sequence used for key prefetch, if any.
func (d *Descriptor) SequenceName() string { return d.sequence }

// IDStrategy returns the id generation strategy.
func (d *Descriptor) IDStrategy() IDStrategy { return d.idStrategy }

// String implements fmt.Stringer.
func (d *Descriptor) String() string {
	if !d.Partitioned() {
		return d.table
	}
	return fmt.Sprintf("%s(partitioned by %s)", d.table, strings.Join(d.partitionKeys, ", "))
}
