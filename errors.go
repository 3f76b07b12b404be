package partitioned

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the error categories of the routing layer.
var (
	// ErrRouting is matched by every RoutingError.
	ErrRouting = errors.New("partitioned: cannot route operation")

	// ErrMalformedStatement is matched by every MalformedStatementError.
	ErrMalformedStatement = errors.New("partitioned: malformed statement")

	// ErrPartitionKeyChanged is returned when an update changes a partition-key
	// column and partition moves are not enabled.
	ErrPartitionKeyChanged = errors.New("partitioned: partition key changed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("partitioned: record not found")
)

// RoutingError is returned when a physical table cannot be resolved for an
// operation. No statement is built when it occurs.
type RoutingError struct {
	Entity  string   // Entity (logical table) being routed
	Missing []string // Partition-key columns absent from the attributes
	Err     error    // Underlying cause, e.g. a naming function rejection
}

// Error returns the error string.
func (e *RoutingError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "partitioned: cannot route %s", e.Entity)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&sb, " (missing partition columns: %s)", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Is reports whether the target error matches ErrRouting.
func (e *RoutingError) Is(err error) bool {
	return err == ErrRouting
}

// Unwrap returns the underlying error.
func (e *RoutingError) Unwrap() error {
	return e.Err
}

// NewRoutingError returns a new RoutingError.
func NewRoutingError(entity string, missing []string, err error) *RoutingError {
	return &RoutingError{Entity: entity, Missing: missing, Err: err}
}

// IsRoutingError returns true if the error is a RoutingError.
func IsRoutingError(err error) bool {
	if err == nil {
		return false
	}
	var e *RoutingError
	return errors.As(err, &e) || errors.Is(err, ErrRouting)
}

// MalformedStatementError is returned when a builder is asked for a
// statement that violates its contract, such as an UPDATE without columns
// or an UPDATE/DELETE without constraints.
type MalformedStatementError struct {
	Kind   string // Statement kind: insert, update, delete or select
	Table  string // Table the statement targeted
	Reason string
}

// Error returns the error string.
func (e *MalformedStatementError) Error() string {
	return fmt.Sprintf("partitioned: malformed %s on %s: %s", e.Kind, e.Table, e.Reason)
}

// Is reports whether the target error matches ErrMalformedStatement.
func (e *MalformedStatementError) Is(err error) bool {
	return err == ErrMalformedStatement
}

// NewMalformedStatementError returns a new MalformedStatementError.
func NewMalformedStatementError(kind, table, reason string) *MalformedStatementError {
	return &MalformedStatementError{Kind: kind, Table: table, Reason: reason}
}

// IsMalformedStatement returns true if the error is a MalformedStatementError.
func IsMalformedStatement(err error) bool {
	if err == nil {
		return false
	}
	var e *MalformedStatementError
	return errors.As(err, &e) || errors.Is(err, ErrMalformedStatement)
}

// ExecError wraps an error returned by the SQL executor. The cause is kept
// unmodified and reachable through Unwrap.
type ExecError struct {
	Table string
	Err   error
}

// Error returns the error string.
func (e *ExecError) Error() string {
	return fmt.Sprintf("partitioned: executing on %s: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// NewExecError returns a new ExecError.
func NewExecError(table string, err error) *ExecError {
	return &ExecError{Table: table, Err: err}
}

// IsExecError returns true if the error came from the executor.
func IsExecError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("partitioned: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("partitioned: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("partitioned: %s not found", e.label)
}

// Is reports whether the target error matches ErrNotFound.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// NewNotFoundError returns a new NotFoundError for the given entity and id.
func NewNotFoundError(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// MutationError wraps a create, update or delete failure with context.
type MutationError struct {
	Entity string // Entity type being mutated
	Op     string // Operation (e.g., "create", "update", "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("partitioned: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// QueryError wraps a select failure with additional context.
type QueryError struct {
	Entity string
	Err    error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return fmt.Sprintf("partitioned: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity string, err error) *QueryError {
	return &QueryError{Entity: entity, Err: err}
}

// AggregateError represents multiple errors collected during an operation,
// such as a failed partition move followed by a failed rollback.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "partitioned: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("partitioned: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors for errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
