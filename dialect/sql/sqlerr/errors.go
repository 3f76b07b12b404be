// Package sqlerr classifies errors returned by SQL drivers, so the routing
// layer can report constraint violations without depending on one driver.
package sqlerr

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Kind is the class of a constraint violation.
type Kind int

// Constraint violation kinds.
const (
	None Kind = iota
	Unique
	ForeignKey
	Check
	NotNull
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Unique:
		return "unique"
	case ForeignKey:
		return "foreign key"
	case Check:
		return "check"
	case NotNull:
		return "not null"
	default:
		return "none"
	}
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlStateError is implemented by pgx (pgconn.PgError) and other drivers
// exposing SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// Classify returns the constraint violation kind of err, or None.
func Classify(err error) Kind {
	if err == nil {
		return None
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fromSQLState(string(pqErr.Code))
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fromMySQL(myErr.Number)
	}
	var stateErr sqlStateError
	if errors.As(err, &stateErr) {
		return fromSQLState(stateErr.SQLState())
	}
	// Fallback to message matching for drivers without typed errors (SQLite).
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "violates unique constraint", "Error 1062"):
		return Unique
	case containsAny(msg, "FOREIGN KEY constraint failed", "violates foreign key constraint", "Error 1451", "Error 1452"):
		return ForeignKey
	case containsAny(msg, "CHECK constraint failed", "violates check constraint", "Error 3819"):
		return Check
	case containsAny(msg, "NOT NULL constraint failed", "violates not-null constraint", "Error 1048"):
		return NotNull
	}
	return None
}

func fromSQLState(code string) Kind {
	switch code {
	case pgUniqueViolation:
		return Unique
	case pgForeignKeyViolation:
		return ForeignKey
	case pgCheckViolation:
		return Check
	case pgNotNullViolation:
		return NotNull
	}
	return None
}

func fromMySQL(n uint16) Kind {
	switch n {
	case mysqlDuplicateEntry:
		return Unique
	case mysqlForeignKeyParent, mysqlForeignKeyChild:
		return ForeignKey
	case mysqlCheckConstraintViolate:
		return Check
	case mysqlBadNull:
		return NotNull
	}
	return None
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return Classify(err) != None
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return Classify(err) == Unique
}

// IsForeignKeyConstraintError reports if the error resulted from a foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return Classify(err) == ForeignKey
}

// IsCheckConstraintError reports if the error resulted from a check constraint violation.
func IsCheckConstraintError(err error) bool {
	return Classify(err) == Check
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
