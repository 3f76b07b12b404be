package partition

import (
	"errors"
	"fmt"

	"github.com/mobilizeio/partitioned"
	"github.com/mobilizeio/partitioned/dialect/sql"
	"github.com/mobilizeio/partitioned/schema"
)

// Router computes the physical table of a partitioned entity. Entity types
// without a Router are stored in their logical table.
type Router = schema.Router

var (
	// ErrMissingColumns is returned when one or more partition-key columns
	// are absent from the attributes of an operation.
	ErrMissingColumns = errors.New("missing one or more partition columns")
	// ErrInvalidPartitionValue is returned when a naming scheme cannot
	// derive a table from a partition-key value.
	ErrInvalidPartitionValue = errors.New("invalid partition value")
	// ErrFuncNotFound is returned for unknown named schemes.
	ErrFuncNotFound = errors.New("partition function not found")
	// ErrMissingArgs is returned when a named scheme lacks arguments.
	ErrMissingArgs = errors.New("missing args")
)

// Resolve returns the physical table for an operation. A nil router means
// the entity is not partitioned and the logical table is returned.
//
// Resolve fails with a *partitioned.RoutingError when a partition-key column
// is missing from attrs or the router rejects its value.
func Resolve(desc *schema.Descriptor, router Router, attrs *schema.Attributes) (string, error) {
	if router == nil {
		return desc.Table(), nil
	}
	if missing := MissingColumns(desc, attrs); len(missing) > 0 {
		return "", partitioned.NewRoutingError(desc.Table(), missing, ErrMissingColumns)
	}
	table, err := router.Route(desc, attrs)
	if err != nil {
		var re *partitioned.RoutingError
		if errors.As(err, &re) {
			return "", err
		}
		return "", partitioned.NewRoutingError(desc.Table(), nil, err)
	}
	if !sql.IsValidIdentifier(table) {
		return "", partitioned.NewRoutingError(desc.Table(), nil,
			fmt.Errorf("%w: resulting table %q is not a valid identifier", ErrInvalidPartitionValue, table))
	}
	return table, nil
}

// MissingColumns returns the partition-key columns of desc absent from attrs.
func MissingColumns(desc *schema.Descriptor, attrs *schema.Attributes) []string {
	var missing []string
	for _, k := range desc.PartitionKeys() {
		if !attrs.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// SchemeRouter routes to "<logical table>_<scheme suffix>".
type SchemeRouter struct {
	Scheme Scheme
}

// By returns a router naming partitions with the given scheme.
func By(s Scheme) *SchemeRouter {
	return &SchemeRouter{Scheme: s}
}

// Route implements Router.
func (r *SchemeRouter) Route(desc *schema.Descriptor, attrs *schema.Attributes) (string, error) {
	values := make(map[string]any, len(r.Scheme.Columns()))
	for _, c := range r.Scheme.Columns() {
		v, ok := attrs.Get(c)
		if !ok {
			return "", partitioned.NewRoutingError(desc.Table(), []string{c}, ErrMissingColumns)
		}
		values[c] = v
	}
	suffix, err := r.Scheme.Suffix(values)
	if err != nil {
		return "", err
	}
	return desc.Table() + "_" + suffix, nil
}

// Columns returns the partition-key columns read by the scheme.
func (r *SchemeRouter) Columns() []string {
	return r.Scheme.Columns()
}

// String returns the scheme description.
func (r *SchemeRouter) String() string {
	return fmt.Sprint(r.Scheme)
}
