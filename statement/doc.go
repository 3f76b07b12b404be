// Package statement builds immutable descriptors of the SQL statements an
// operation executes. Every descriptor carries the physical table it was
// built for; the table cannot be changed afterwards. Descriptors render to
// SQL for a dialect with Query.
package statement
