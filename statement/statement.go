package statement

import (
	"slices"
	"strings"

	"github.com/mobilizeio/partitioned/dialect"
	"github.com/mobilizeio/partitioned/dialect/sql"
)

// Kind is the kind of a statement.
type Kind int

// Statement kinds.
const (
	KindInsert Kind = iota + 1
	KindUpdate
	KindDelete
	KindSelect
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindSelect:
		return "select"
	default:
		return "unknown"
	}
}

// Statement is a self-contained description of one SQL operation.
type Statement interface {
	Kind() Kind
	// Table returns the physical table the statement was built for.
	Table() string
	// Query renders the statement for the given dialect.
	Query(dialect string) (string, []any, error)
}

// Insert describes an INSERT into one physical table.
type Insert struct {
	table     string
	columns   []string
	values    []any
	returning string
}

// Kind implements Statement.
func (*Insert) Kind() Kind { return KindInsert }

// Table implements Statement.
func (s *Insert) Table() string { return s.table }

// Columns returns the inserted columns, in order.
func (s *Insert) Columns() []string { return slices.Clone(s.columns) }

// Values returns the inserted values, in column order.
func (s *Insert) Values() []any { return slices.Clone(s.values) }

// Returning returns the column whose generated value is read back, if any.
func (s *Insert) Returning() string { return s.returning }

// Query implements Statement. An insert without columns inserts a row of
// defaults.
func (s *Insert) Query(dialect string) (string, []any, error) {
	b := sql.Dialect(dialect).Insert(s.table)
	if len(s.columns) == 0 {
		b.Default()
	} else {
		b.Columns(s.columns...).Values(s.values...)
	}
	if s.returning != "" {
		b.Returning(s.returning)
	}
	query, args := b.Query()
	return query, args, b.Err()
}

// Update describes an UPDATE of one physical table.
type Update struct {
	table       string
	columns     []string
	values      []any
	constraints []Constraint
}

// Kind implements Statement.
func (*Update) Kind() Kind { return KindUpdate }

// Table implements Statement.
func (s *Update) Table() string { return s.table }

// Columns returns the updated columns, in order.
func (s *Update) Columns() []string { return slices.Clone(s.columns) }

// Values returns the new values, in column order.
func (s *Update) Values() []any { return slices.Clone(s.values) }

// Constraints returns the WHERE constraints.
func (s *Update) Constraints() []Constraint { return slices.Clone(s.constraints) }

// Query implements Statement.
func (s *Update) Query(dialect string) (string, []any, error) {
	b := sql.Dialect(dialect).Update(s.table)
	for i, c := range s.columns {
		b.Set(c, s.values[i])
	}
	if p := where(s.constraints); p != nil {
		b.Where(p)
	}
	query, args := b.Query()
	return query, args, b.Err()
}

// Delete describes a DELETE from one physical table.
type Delete struct {
	table       string
	constraints []Constraint
}

// Kind implements Statement.
func (*Delete) Kind() Kind { return KindDelete }

// Table implements Statement.
func (s *Delete) Table() string { return s.table }

// Constraints returns the WHERE constraints.
func (s *Delete) Constraints() []Constraint { return slices.Clone(s.constraints) }

// Query implements Statement.
func (s *Delete) Query(dialect string) (string, []any, error) {
	b := sql.Dialect(dialect).Delete(s.table)
	if p := where(s.constraints); p != nil {
		b.Where(p)
	}
	query, args := b.Query()
	return query, args, b.Err()
}

// Select describes a SELECT from one table.
type Select struct {
	table       string
	projection  []string
	constraints []Constraint
	order       []string
	limit       int
	offset      int
}

// Kind implements Statement.
func (*Select) Kind() Kind { return KindSelect }

// Table implements Statement.
func (s *Select) Table() string { return s.table }

// Projection returns the selected columns.
func (s *Select) Projection() []string { return slices.Clone(s.projection) }

// Constraints returns the WHERE constraints.
func (s *Select) Constraints() []Constraint { return slices.Clone(s.constraints) }

// Query implements Statement.
func (s *Select) Query(dialect string) (string, []any, error) {
	d := sql.Dialect(dialect)
	b := d.Select(s.projection...).From(d.Table(s.table))
	if p := where(s.constraints); p != nil {
		b.Where(p)
	}
	if len(s.order) > 0 {
		b.OrderBy(s.order...)
	}
	if s.limit > 0 {
		b.Limit(s.limit)
	}
	if s.offset > 0 {
		b.Offset(s.offset)
	}
	query, args := b.Query()
	return query, args, b.Err()
}

// String renders the statement for PostgreSQL, for logs.
func String(s Statement) string {
	query, _, err := s.Query(dialect.Postgres)
	if err != nil {
		return s.Kind().String() + " " + s.Table() + ": " + err.Error()
	}
	return strings.TrimSpace(query)
}
