package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mobilizeio/partitioned/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// state wraps all methods for setting and getting
// update state between all queries in the query tree.
type state interface {
	Dialect() string
	SetDialect(string)
	Total() int
	SetTotal(int)
}

// Builder is the base query builder for the sql dsl.
type Builder struct {
	sb      *strings.Builder // underlying builder.
	dialect string           // configured dialect.
	args    []any            // query parameters.
	total   int              // total number of parameters in query tree.
	errs    []error          // errors that occurred during query construction.
}

// Quote quotes the given identifier with the characters based
// on the configured dialect. It defaults to "`".
func (b *Builder) Quote(ident string) string {
	quote := "`"
	switch {
	case b.postgres(), b.dialect == dialect.SQLite:
		quote = `"`
		// Replace double quotes with escaped ones.
		if strings.Contains(ident, `"`) {
			ident = strings.ReplaceAll(ident, `"`, `""`)
		}
	default:
		if strings.Contains(ident, "`") {
			ident = strings.ReplaceAll(ident, "`", "``")
		}
	}
	return quote + ident + quote
}

// Ident appends the given string as an identifier. Qualified identifiers
// ("table.column", "table.*") are quoted per part, and strings that are not
// plain identifiers (expressions, function calls, raw fragments) are written
// unchanged.
func (b *Builder) Ident(s string) *Builder {
	switch {
	case len(s) == 0:
	case s == "*":
		b.WriteString(s)
	case !isPlainIdent(s):
		b.WriteString(s)
	default:
		parts := strings.Split(s, ".")
		for i, p := range parts {
			if i > 0 {
				b.WriteByte('.')
			}
			if p == "*" {
				b.WriteString(p)
				continue
			}
			b.WriteString(b.Quote(p))
		}
	}
	return b
}

// isPlainIdent reports if s is an identifier or a qualified identifier,
// optionally ending with a ".*" wildcard.
func isPlainIdent(s string) bool {
	for i, p := range strings.Split(s, ".") {
		if p == "*" && i > 0 && i == strings.Count(s, ".") {
			continue
		}
		if !isValidIdentifier(p) {
			return false
		}
	}
	return true
}

// IdentComma calls Ident on all arguments and adds a comma between them.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.Comma()
		}
		b.Ident(s[i])
	}
	return b
}

// String returns the accumulated string.
func (b *Builder) String() string {
	if b.sb == nil {
		return ""
	}
	return b.sb.String()
}

// WriteByte wraps the Buffer.WriteByte to make it chainable with other methods.
func (b *Builder) WriteByte(c byte) *Builder {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
	b.sb.WriteByte(c)
	return b
}

// WriteString wraps the Buffer.WriteString to make it chainable with other methods.
func (b *Builder) WriteString(s string) *Builder {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
	b.sb.WriteString(s)
	return b
}

// Len returns the number of accumulated bytes.
func (b *Builder) Len() int {
	if b.sb == nil {
		return 0
	}
	return b.sb.Len()
}

// Reset resets the Builder to be empty.
func (b *Builder) Reset() *Builder {
	if b.sb != nil {
		b.sb.Reset()
	}
	b.args = nil
	return b
}

// AddError appends an error to the builder errors.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns a concatenated error of all errors encountered during
// the query-building, or were added manually by calling AddError.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Arg appends an input argument to the builder.
func (b *Builder) Arg(a any) *Builder {
	b.total++
	b.args = append(b.args, a)
	if b.postgres() {
		b.WriteString("$" + strconv.Itoa(b.total))
	} else {
		b.WriteByte('?')
	}
	return b
}

// Args appends a list of arguments to the builder.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.Comma()
		}
		b.Arg(a[i])
	}
	return b
}

// Comma adds a comma to the query.
func (b *Builder) Comma() *Builder {
	return b.WriteString(", ")
}

// Pad adds a space to the query.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// Join joins a list of Queries to the builder.
func (b *Builder) Join(qs ...Querier) *Builder {
	return b.join(qs, "")
}

// JoinComma joins a list of Queries and adds comma between them.
func (b *Builder) JoinComma(qs ...Querier) *Builder {
	return b.join(qs, ", ")
}

func (b *Builder) join(qs []Querier, sep string) *Builder {
	for i, q := range qs {
		if i > 0 {
			b.WriteString(sep)
		}
		st, ok := q.(state)
		if ok {
			st.SetDialect(b.dialect)
			st.SetTotal(b.total)
		}
		query, args := q.Query()
		b.WriteString(query)
		b.args = append(b.args, args...)
		b.total += len(args)
		if eb, ok := q.(interface{ Err() error }); ok {
			b.AddError(eb.Err())
		}
	}
	return b
}

// Nested gets a callback, and wraps its result with parentheses.
func (b *Builder) Nested(f func(*Builder)) *Builder {
	nb := &Builder{dialect: b.dialect, total: b.total, sb: &strings.Builder{}}
	nb.WriteByte('(')
	f(nb)
	nb.WriteByte(')')
	b.WriteString(nb.String())
	b.args = append(b.args, nb.args...)
	b.total = nb.total
	b.errs = append(b.errs, nb.errs...)
	return b
}

// SetDialect sets the builder dialect. It's used for garnering dialect specific queries.
func (b *Builder) SetDialect(dialect string) {
	b.dialect = dialect
}

// Dialect returns the dialect of the builder.
func (b Builder) Dialect() string {
	return b.dialect
}

// Total returns the total number of arguments so far.
func (b Builder) Total() int {
	return b.total
}

// SetTotal sets the value of the total arguments.
// Used to pass this information between sub queries/expressions.
func (b *Builder) SetTotal(total int) {
	b.total = total
}

// Query implements the Querier interface.
func (b Builder) Query() (string, []any) {
	return b.String(), b.args
}

// postgres reports if the builder dialect is PostgreSQL.
func (b Builder) postgres() bool {
	return b.Dialect() == dialect.Postgres
}

// Predicate is a where predicate.
type Predicate struct {
	Builder
	compound bool // renders a top-level AND/OR.
	fns      []func(*Builder)
}

// P creates a new predicate.
//
//	P().EQ("name", "a8m")
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

// Append appends a new function to the predicate callbacks.
// The callback list are executed on call to Query.
func (p *Predicate) Append(f func(*Builder)) *Predicate {
	p.fns = append(p.fns, f)
	return p
}

// Query returns query representation of a predicate.
func (p *Predicate) Query() (string, []any) {
	if p.Len() > 0 || len(p.args) > 0 {
		p.Reset()
	}
	for _, f := range p.fns {
		f(&p.Builder)
	}
	return p.String(), p.args
}

// And combines all given predicates with AND between them.
func And(preds ...*Predicate) *Predicate {
	p := P(func(b *Builder) {
		joinPredicates(b, preds, "AND")
	})
	p.compound = len(preds) > 1
	return p
}

// Or combines all given predicates with OR between them.
func Or(preds ...*Predicate) *Predicate {
	p := P(func(b *Builder) {
		joinPredicates(b, preds, "OR")
	})
	p.compound = len(preds) > 1
	return p
}

// Not wraps the given predicate with the not predicate.
func Not(pred *Predicate) *Predicate {
	return P().Append(func(b *Builder) {
		b.WriteString("NOT ").Nested(func(b *Builder) {
			b.Join(pred)
		})
	})
}

func joinPredicates(b *Builder, preds []*Predicate, op string) {
	for i, p := range preds {
		if i > 0 {
			b.WriteString(" " + op + " ")
		}
		if p.compound && len(preds) > 1 {
			b.Nested(func(b *Builder) {
				b.Join(p)
			})
			continue
		}
		b.Join(p)
	}
}

// EQ returns a "=" predicate.
func EQ(col string, value any) *Predicate {
	return P().EQ(col, value)
}

// EQ appends a "=" predicate.
func (p *Predicate) EQ(col string, arg any) *Predicate {
	return p.compare(col, "=", arg)
}

// NEQ returns a "<>" predicate.
func NEQ(col string, value any) *Predicate {
	return P().NEQ(col, value)
}

// NEQ appends a "<>" predicate.
func (p *Predicate) NEQ(col string, arg any) *Predicate {
	return p.compare(col, "<>", arg)
}

// LT returns a "<" predicate.
func LT(col string, value any) *Predicate {
	return P().compare(col, "<", value)
}

// LTE returns a "<=" predicate.
func LTE(col string, value any) *Predicate {
	return P().compare(col, "<=", value)
}

// GT returns a ">" predicate.
func GT(col string, value any) *Predicate {
	return P().compare(col, ">", value)
}

// GTE returns a ">=" predicate.
func GTE(col string, value any) *Predicate {
	return P().compare(col, ">=", value)
}

func (p *Predicate) compare(col, op string, arg any) *Predicate {
	return p.Append(func(b *Builder) {
		b.Ident(col).WriteString(" " + op + " ").Arg(arg)
	})
}

// In returns the `IN` predicate.
func In(col string, args ...any) *Predicate {
	return P().In(col, args...)
}

// In appends the `IN` predicate. An empty argument list renders a
// predicate that matches nothing.
func (p *Predicate) In(col string, args ...any) *Predicate {
	if len(args) == 0 {
		return p.Append(func(b *Builder) {
			b.WriteString("FALSE")
		})
	}
	return p.Append(func(b *Builder) {
		b.Ident(col).WriteString(" IN ").Nested(func(b *Builder) {
			b.Args(args...)
		})
	})
}

// IsNull returns the `IS NULL` predicate.
func IsNull(col string) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" IS NULL")
	})
}

// NotNull returns the `IS NOT NULL` predicate.
func NotNull(col string) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" IS NOT NULL")
	})
}

// ExprP creates a new predicate from the given raw expression and arguments.
//
//	ExprP("A = ?", true)
func ExprP(exr string, args ...any) *Predicate {
	return P().Append(func(b *Builder) {
		parts := strings.Split(exr, "?")
		for i, part := range parts {
			b.WriteString(part)
			if i < len(args) && i < len(parts)-1 {
				b.Arg(args[i])
			}
		}
	})
}

// SelectTable is a table selector.
type SelectTable struct {
	Builder
	as   string
	name string
}

// Table returns a new table selector.
//
//	t1 := Table("events_2020_01").As("e")
//	return Select(t1.C("name"))
func Table(name string) *SelectTable {
	return &SelectTable{name: name}
}

// As adds the AS clause to the table selector.
func (s *SelectTable) As(alias string) *SelectTable {
	s.as = alias
	return s
}

// Name returns the table name (not the alias).
func (s *SelectTable) Name() string {
	return s.name
}

// Ref returns the name used to reference columns of the table: its alias
// when set, its name otherwise.
func (s *SelectTable) Ref() string {
	if s.as != "" {
		return s.as
	}
	return s.name
}

// C returns a formatted string for the table column.
func (s *SelectTable) C(column string) string {
	return s.Ref() + "." + column
}

// Columns returns a list of formatted strings for the table columns.
func (s *SelectTable) Columns(columns ...string) []string {
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, s.C(c))
	}
	return names
}

// Query returns query representation of a table selector.
func (s *SelectTable) Query() (string, []any) {
	s.Reset()
	s.Ident(s.name)
	if s.as != "" {
		s.WriteString(" AS ")
		s.Ident(s.as)
	}
	return s.String(), nil
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	Builder
	columns []string
	from    *SelectTable
	where   *Predicate
	order   []string
	limit   *int
	offset  *int
}

// Select returns a new selector for the `SELECT` statement.
//
//	t1 := Table("events_2020_01")
//	Select(t1.C("*")).From(t1).Where(EQ(t1.C("id"), 1))
func Select(columns ...string) *Selector {
	return (&Selector{}).Select(columns...)
}

// Select changes the columns selection of the SELECT statement.
// Empty selection means all columns *.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = columns
	return s
}

// SelectedColumns returns the selected columns in the Selector.
func (s *Selector) SelectedColumns() []string {
	return s.columns
}

// From sets the source of `FROM` clause.
func (s *Selector) From(t *SelectTable) *Selector {
	s.from = t
	return s
}

// Table returns the selected table.
func (s *Selector) Table() *SelectTable {
	return s.from
}

// Where sets or appends the given predicate to the statement.
func (s *Selector) Where(p *Predicate) *Selector {
	if s.where != nil {
		s.where = And(s.where, p)
	} else {
		s.where = p
	}
	return s
}

// OrderBy appends the `ORDER BY` clause to the `SELECT` statement.
// A term may carry a direction suffix, e.g. "created_at DESC".
func (s *Selector) OrderBy(columns ...string) *Selector {
	s.order = append(s.order, columns...)
	return s
}

// Limit adds the `LIMIT` clause to the `SELECT` statement.
func (s *Selector) Limit(limit int) *Selector {
	s.limit = &limit
	return s
}

// Offset adds the `OFFSET` clause to the `SELECT` statement.
func (s *Selector) Offset(offset int) *Selector {
	s.offset = &offset
	return s
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	b := s.Builder.clone()
	b.WriteString("SELECT ")
	if len(s.columns) > 0 {
		b.IdentComma(s.columns...)
	} else {
		b.WriteByte('*')
	}
	if s.from == nil {
		b.AddError(errors.New("sql: missing FROM clause"))
	} else {
		b.WriteString(" FROM ")
		b.Join(s.from)
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		b.Join(s.where)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.order {
			if i > 0 {
				b.Comma()
			}
			col, dir, _ := strings.Cut(o, " ")
			b.Ident(col)
			if dir != "" {
				b.Pad().WriteString(strings.ToUpper(dir))
			}
		}
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(*s.offset))
	}
	s.errs = b.errs
	return b.String(), b.args
}

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	Builder
	table     string
	columns   []string
	defaults  bool
	returning []string
	values    [][]any
}

// Insert creates a builder for the `INSERT INTO` statement.
//
//	Insert("events_2020_01").
//		Columns("id", "created_at").
//		Values(1, "2020-01-15")
//
// Note: Insert inserts all values in one batch.
func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

// Columns sets the columns of the insert statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values append a value tuple for the insert statement.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Default sets the default values clause based on the dialect type.
func (i *InsertBuilder) Default() *InsertBuilder {
	i.defaults = true
	return i
}

// Returning adds the `RETURNING` clause to the insert statement.
// Supported by PostgreSQL and SQLite.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	b := i.Builder.clone()
	b.WriteString("INSERT INTO ")
	b.Ident(i.table).Pad()
	if i.defaults && len(i.columns) == 0 {
		if b.Dialect() == dialect.MySQL {
			b.WriteString("VALUES ()")
		} else {
			b.WriteString("DEFAULT VALUES")
		}
	} else {
		b.Nested(func(b *Builder) {
			b.IdentComma(i.columns...)
		})
		b.WriteString(" VALUES ")
		for j, v := range i.values {
			if j > 0 {
				b.Comma()
			}
			if len(v) != len(i.columns) {
				b.AddError(fmt.Errorf("sql: insert %s: %d values for %d columns", i.table, len(v), len(i.columns)))
			}
			b.Nested(func(b *Builder) {
				b.Args(v...)
			})
		}
	}
	if len(i.returning) > 0 && b.Dialect() != dialect.MySQL {
		b.WriteString(" RETURNING ")
		b.IdentComma(i.returning...)
	}
	i.errs = b.errs
	return b.String(), b.args
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	Builder
	table   string
	where   *Predicate
	nulls   []string
	columns []string
	values  []any
}

// Update creates a builder for the `UPDATE` statement.
//
//	Update("events_2020_01").Set("name", "foo").Where(EQ("id", 1))
func Update(table string) *UpdateBuilder { return &UpdateBuilder{table: table} }

// Set sets a column to a given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// SetNull sets a column as null value.
func (u *UpdateBuilder) SetNull(column string) *UpdateBuilder {
	u.nulls = append(u.nulls, column)
	return u
}

// Where adds a where predicate for update statement.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where != nil {
		u.where = And(u.where, p)
	} else {
		u.where = p
	}
	return u
}

// Empty reports whether this builder does not contain update changes.
func (u *UpdateBuilder) Empty() bool {
	return len(u.columns) == 0 && len(u.nulls) == 0
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	b := u.Builder.clone()
	b.WriteString("UPDATE ")
	b.Ident(u.table).WriteString(" SET ")
	if u.Empty() {
		b.AddError(fmt.Errorf("sql: update %s: no columns to set", u.table))
	}
	for i, c := range u.nulls {
		if i > 0 {
			b.Comma()
		}
		b.Ident(c).WriteString(" = NULL")
	}
	if len(u.nulls) > 0 && len(u.columns) > 0 {
		b.Comma()
	}
	for i, c := range u.columns {
		if i > 0 {
			b.Comma()
		}
		b.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		b.Join(u.where)
	}
	u.errs = b.errs
	return b.String(), b.args
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	Builder
	table string
	where *Predicate
}

// Delete creates a builder for the `DELETE` statement.
//
//	Delete("events_2020_01").Where(EQ("id", 1))
func Delete(table string) *DeleteBuilder { return &DeleteBuilder{table: table} }

// Where appends a where predicate to the `DELETE` statement.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where != nil {
		d.where = And(d.where, p)
	} else {
		d.where = p
	}
	return d
}

// Query returns query representation of a `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any) {
	b := d.Builder.clone()
	b.WriteString("DELETE FROM ")
	b.Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		b.Join(d.where)
	}
	d.errs = b.errs
	return b.String(), b.args
}

// clone returns a fresh builder with the same dialect and argument offset,
// so Query can be called more than once on the same statement builder.
func (b Builder) clone() *Builder {
	return &Builder{dialect: b.dialect, total: b.total, sb: &strings.Builder{}}
}

// DialectBuilder prefixes all root builders with the `Dialect` setter.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{name}
}

// Select creates a Selector for the configured dialect.
//
//	Dialect(dialect.Postgres).
//		Select().From(Table("events_2020_01"))
func (d *DialectBuilder) Select(columns ...string) *Selector {
	b := Select(columns...)
	b.SetDialect(d.dialect)
	return b
}

// Table creates a SelectTable for the configured dialect.
func (d *DialectBuilder) Table(name string) *SelectTable {
	b := Table(name)
	b.SetDialect(d.dialect)
	return b
}

// Insert creates an InsertBuilder for the configured dialect.
//
//	Dialect(dialect.Postgres).
//		Insert("events_2020_01").Columns("id").Values(1)
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	b := Insert(table)
	b.SetDialect(d.dialect)
	return b
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	b := Update(table)
	b.SetDialect(d.dialect)
	return b
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	b := Delete(table)
	b.SetDialect(d.dialect)
	return b
}
