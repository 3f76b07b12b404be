package schema

import (
	"reflect"
	"slices"
)

// Attributes is an ordered mapping of column to bound value for one
// operation. Insertion order decides the column order of the generated SQL.
// The zero value is ready to use.
type Attributes struct {
	columns []string
	values  map[string]any
}

// NewAttributes returns attributes populated with the given column/value
// pairs. It panics if pairs has an odd length or a non-string column.
//
//	NewAttributes("id", 1, "created_at", "2020-01-15")
func NewAttributes(pairs ...any) *Attributes {
	if len(pairs)%2 != 0 {
		panic("schema: odd number of attribute pairs")
	}
	a := &Attributes{}
	for i := 0; i < len(pairs); i += 2 {
		a.Set(pairs[i].(string), pairs[i+1])
	}
	return a
}

// Set sets the value of a column, appending the column if it is new.
func (a *Attributes) Set(column string, value any) *Attributes {
	if a.values == nil {
		a.values = make(map[string]any)
	}
	if _, ok := a.values[column]; !ok {
		a.columns = append(a.columns, column)
	}
	a.values[column] = value
	return a
}

// Get returns the value of a column.
func (a *Attributes) Get(column string) (any, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.values[column]
	return v, ok
}

// Has reports if the column is present.
func (a *Attributes) Has(column string) bool {
	_, ok := a.Get(column)
	return ok
}

// Delete removes a column.
func (a *Attributes) Delete(column string) {
	if !a.Has(column) {
		return
	}
	delete(a.values, column)
	a.columns = slices.DeleteFunc(a.columns, func(c string) bool { return c == column })
}

// Len returns the number of columns.
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.columns)
}

// Empty reports if there are no columns.
func (a *Attributes) Empty() bool { return a.Len() == 0 }

// Columns returns the columns in insertion order.
func (a *Attributes) Columns() []string {
	if a == nil {
		return nil
	}
	return slices.Clone(a.columns)
}

// Values returns the values in column order.
func (a *Attributes) Values() []any {
	if a == nil {
		return nil
	}
	vs := make([]any, len(a.columns))
	for i, c := range a.columns {
		vs[i] = a.values[c]
	}
	return vs
}

// Map returns the attributes as a plain map.
func (a *Attributes) Map() map[string]any {
	m := make(map[string]any, a.Len())
	for _, c := range a.Columns() {
		m[c] = a.values[c]
	}
	return m
}

// Clone returns a copy of the attributes. Values are copied shallowly.
func (a *Attributes) Clone() *Attributes {
	c := &Attributes{}
	for _, col := range a.Columns() {
		c.Set(col, a.values[col])
	}
	return c
}

// Only returns a copy holding the given columns that are present, in the
// given order.
func (a *Attributes) Only(columns ...string) *Attributes {
	c := &Attributes{}
	for _, col := range columns {
		if v, ok := a.Get(col); ok {
			c.Set(col, v)
		}
	}
	return c
}

// Union returns a copy of a with the columns of other appended or
// overwritten.
func (a *Attributes) Union(other *Attributes) *Attributes {
	c := a.Clone()
	for _, col := range other.Columns() {
		v, _ := other.Get(col)
		c.Set(col, v)
	}
	return c
}

// Changed returns the columns whose value differs from base. Columns
// missing in base are changed.
func (a *Attributes) Changed(base *Attributes) []string {
	var changed []string
	for _, col := range a.Columns() {
		v, _ := a.Get(col)
		if b, ok := base.Get(col); !ok || !reflect.DeepEqual(v, b) {
			changed = append(changed, col)
		}
	}
	return changed
}

// ChangedFromDefaults returns the columns whose value differs from the
// schema default of the descriptor. Columns without a default are changed
// unless nil.
func (a *Attributes) ChangedFromDefaults(desc *Descriptor) []string {
	var changed []string
	for _, col := range a.Columns() {
		v, _ := a.Get(col)
		def, ok := desc.DefaultOf(col)
		switch {
		case ok && reflect.DeepEqual(v, def):
		case !ok && v == nil:
		default:
			changed = append(changed, col)
		}
	}
	return changed
}

// WithPartitionColumnsForced returns the write-set of an insert or update:
// the changed columns followed by every partition-key column present in
// attrs, even when its value equals the default or the stored value.
// Partition-key columns absent from attrs are not invented; resolution
// reports them as missing.
func WithPartitionColumnsForced(attrs *Attributes, changed []string, desc *Descriptor) *Attributes {
	cols := slices.Clone(changed)
	for _, k := range desc.partitionKeys {
		if !slices.Contains(cols, k) {
			cols = append(cols, k)
		}
	}
	return attrs.Only(cols...)
}
