// Package sql provides the SQL statement builders and the database/sql
// backed driver used by the partition-routing layer.
//
// # Builder Types
//
//   - Builder: low-level SQL string builder with dialect aware identifier
//     quoting and argument placeholders ($n on PostgreSQL, ? elsewhere)
//   - Selector: SELECT builder with WHERE, ORDER BY, LIMIT and OFFSET
//   - InsertBuilder: INSERT builder with DEFAULT VALUES and RETURNING support
//   - UpdateBuilder: UPDATE builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE builder with WHERE predicates
//
// Builders never decide which table they target. The table is always passed
// in by the caller, which is what lets the routing layer point a statement
// at one physical partition:
//
//	sql.Dialect(dialect.Postgres).
//	    Update("events_2020_01").
//	    Set("name", "signup").
//	    Where(sql.EQ("id", 7))
//	// UPDATE "events_2020_01" SET "name" = $1 WHERE "id" = $2
//
// # Identifiers
//
// Ident quotes plain and qualified identifiers ("events_2020_01.*" becomes
// "events_2020_01".*). Anything that is not an identifier, such as
// "COUNT(*)" or "created_at::date", is written as-is.
//
// # Predicates
//
//	sql.EQ("id", 1)                       // "id" = $1
//	sql.In("kind", "a", "b")              // "kind" IN ($1, $2)
//	sql.And(sql.GTE("at", t0), sql.LT("at", t1))
//	sql.IsNull("deleted_at")              // "deleted_at" IS NULL
//
// # Drivers
//
// Driver wraps *sql.DB and implements dialect.Driver. StatsDriver and
// DebugDriver wrap any dialect.Driver to collect statistics or log
// statements with log/slog.
package sql
