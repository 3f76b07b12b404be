package statement

import (
	"slices"

	"github.com/mobilizeio/partitioned"
	"github.com/mobilizeio/partitioned/dialect/sql"
	"github.com/mobilizeio/partitioned/schema"
)

// Criteria selects rows of an entity.
type Criteria struct {
	// Columns is the explicit projection. Empty selects all columns.
	Columns []string
	Where   []Constraint
	OrderBy []string
	Limit   int
	Offset  int
}

// Builder builds statement descriptors for a resolved table. It is
// stateless apart from its options and safe for concurrent use.
type Builder struct {
	allowUnconstrained bool
}

// Option configures a Builder.
type Option func(*Builder)

// AllowUnconstrained permits UPDATE and DELETE statements without
// constraints, which touch every row of the table.
func AllowUnconstrained() Option {
	return func(b *Builder) {
		b.allowUnconstrained = true
	}
}

// NewBuilder returns a new Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Insert returns an INSERT of attrs into table. Empty attrs insert a row of
// defaults. A non-empty returning column requests the generated key.
func (b *Builder) Insert(table string, attrs *schema.Attributes, returning string) (*Insert, error) {
	kind := KindInsert.String()
	if err := checkTable(kind, table); err != nil {
		return nil, err
	}
	if err := checkColumns(kind, table, attrs.Columns()); err != nil {
		return nil, err
	}
	if returning != "" && !sql.IsValidIdentifier(returning) {
		return nil, partitioned.NewMalformedStatementError(kind, table, "invalid returning column "+returning)
	}
	return &Insert{
		table:     table,
		columns:   attrs.Columns(),
		values:    attrs.Values(),
		returning: returning,
	}, nil
}

// Update returns an UPDATE of table setting attrs on the rows matching
// constraints. It fails with a MalformedStatementError when attrs is empty
// or, unless AllowUnconstrained is set, when constraints is empty.
func (b *Builder) Update(table string, attrs *schema.Attributes, constraints []Constraint) (*Update, error) {
	kind := KindUpdate.String()
	if err := checkTable(kind, table); err != nil {
		return nil, err
	}
	if attrs.Empty() {
		return nil, partitioned.NewMalformedStatementError(kind, table, "no columns to set")
	}
	if err := checkColumns(kind, table, attrs.Columns()); err != nil {
		return nil, err
	}
	if err := b.checkConstraints(kind, table, constraints); err != nil {
		return nil, err
	}
	return &Update{
		table:       table,
		columns:     attrs.Columns(),
		values:      attrs.Values(),
		constraints: slices.Clone(constraints),
	}, nil
}

// Delete returns a DELETE from table of the rows matching constraints. It
// fails with a MalformedStatementError when constraints is empty, unless
// AllowUnconstrained is set.
func (b *Builder) Delete(table string, constraints []Constraint) (*Delete, error) {
	kind := KindDelete.String()
	if err := checkTable(kind, table); err != nil {
		return nil, err
	}
	if err := b.checkConstraints(kind, table, constraints); err != nil {
		return nil, err
	}
	return &Delete{table: table, constraints: slices.Clone(constraints)}, nil
}

// Select returns a SELECT from table. The projection is built with
// Projection against the known columns.
func (b *Builder) Select(table string, known []string, c Criteria) (*Select, error) {
	kind := KindSelect.String()
	if err := checkTable(kind, table); err != nil {
		return nil, err
	}
	for _, cs := range c.Where {
		if err := cs.validate(); err != nil {
			return nil, partitioned.NewMalformedStatementError(kind, table, err.Error())
		}
	}
	if c.Limit < 0 || c.Offset < 0 {
		return nil, partitioned.NewMalformedStatementError(kind, table, "negative limit or offset")
	}
	return &Select{
		table:       table,
		projection:  Projection(table, c.Columns, known),
		constraints: slices.Clone(c.Where),
		order:       slices.Clone(c.OrderBy),
		limit:       c.Limit,
		offset:      c.Offset,
	}, nil
}

func (b *Builder) checkConstraints(kind, table string, cs []Constraint) error {
	if len(cs) == 0 && !b.allowUnconstrained {
		return partitioned.NewMalformedStatementError(kind, table, "no constraints")
	}
	for _, c := range cs {
		if err := c.validate(); err != nil {
			return partitioned.NewMalformedStatementError(kind, table, err.Error())
		}
	}
	return nil
}

func checkTable(kind, table string) error {
	if !sql.IsValidIdentifier(table) {
		return partitioned.NewMalformedStatementError(kind, table, "invalid table name")
	}
	return nil
}

func checkColumns(kind, table string, columns []string) error {
	for _, c := range columns {
		if !sql.IsValidIdentifier(c) {
			return partitioned.NewMalformedStatementError(kind, table, "invalid column "+c)
		}
	}
	return nil
}
