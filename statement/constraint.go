package statement

import (
	"fmt"
	"strings"

	"github.com/mobilizeio/partitioned/dialect/sql"
)

// Op is a constraint operator.
type Op string

// Constraint operators.
const (
	OpEQ     Op = "="
	OpNEQ    Op = "<>"
	OpLT     Op = "<"
	OpLTE    Op = "<="
	OpGT     Op = ">"
	OpGTE    Op = ">="
	OpIn     Op = "IN"
	OpIsNull Op = "IS NULL"
)

// Constraint is one WHERE predicate. Constraints of a statement are AND-ed.
type Constraint struct {
	Column string
	Op     Op
	Value  any
}

// EQ returns a column = value constraint.
func EQ(column string, value any) Constraint { return Constraint{Column: column, Op: OpEQ, Value: value} }

// NEQ returns a column <> value constraint.
func NEQ(column string, value any) Constraint { return Constraint{Column: column, Op: OpNEQ, Value: value} }

// LT returns a column < value constraint.
func LT(column string, value any) Constraint { return Constraint{Column: column, Op: OpLT, Value: value} }

// LTE returns a column <= value constraint.
func LTE(column string, value any) Constraint { return Constraint{Column: column, Op: OpLTE, Value: value} }

// GT returns a column > value constraint.
func GT(column string, value any) Constraint { return Constraint{Column: column, Op: OpGT, Value: value} }

// GTE returns a column >= value constraint.
func GTE(column string, value any) Constraint { return Constraint{Column: column, Op: OpGTE, Value: value} }

// In returns a column IN (values...) constraint.
func In(column string, values ...any) Constraint {
	return Constraint{Column: column, Op: OpIn, Value: values}
}

// IsNull returns a column IS NULL constraint.
func IsNull(column string) Constraint { return Constraint{Column: column, Op: OpIsNull} }

// String implements fmt.Stringer.
func (c Constraint) String() string {
	if c.Op == OpIsNull {
		return c.Column + " IS NULL"
	}
	return fmt.Sprintf("%s %s %v", c.Column, c.Op, c.Value)
}

func (c Constraint) validate() error {
	if !validColumn(c.Column) {
		return fmt.Errorf("invalid constraint column %q", c.Column)
	}
	switch c.Op {
	case OpEQ, OpNEQ, OpLT, OpLTE, OpGT, OpGTE, OpIsNull:
	case OpIn:
		if _, ok := c.Value.([]any); !ok {
			return fmt.Errorf("IN constraint on %s needs a value list, got %T", c.Column, c.Value)
		}
	default:
		return fmt.Errorf("unknown operator %q", c.Op)
	}
	return nil
}

func (c Constraint) predicate() *sql.Predicate {
	switch c.Op {
	case OpNEQ:
		return sql.NEQ(c.Column, c.Value)
	case OpLT:
		return sql.LT(c.Column, c.Value)
	case OpLTE:
		return sql.LTE(c.Column, c.Value)
	case OpGT:
		return sql.GT(c.Column, c.Value)
	case OpGTE:
		return sql.GTE(c.Column, c.Value)
	case OpIn:
		return sql.In(c.Column, c.Value.([]any)...)
	case OpIsNull:
		return sql.IsNull(c.Column)
	default:
		return sql.EQ(c.Column, c.Value)
	}
}

// where returns the AND of the constraints, or nil.
func where(cs []Constraint) *sql.Predicate {
	switch len(cs) {
	case 0:
		return nil
	case 1:
		return cs[0].predicate()
	}
	ps := make([]*sql.Predicate, len(cs))
	for i, c := range cs {
		ps[i] = c.predicate()
	}
	return sql.And(ps...)
}

// validColumn accepts plain and table-qualified column names.
func validColumn(c string) bool {
	table, col, qualified := strings.Cut(c, ".")
	if qualified {
		return sql.IsValidIdentifier(table) && sql.IsValidIdentifier(col)
	}
	return sql.IsValidIdentifier(c)
}
