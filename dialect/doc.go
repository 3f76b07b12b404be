// Package dialect provides the database dialect abstraction used by the
// partition-routing layer.
//
// The routing layer never owns connections. It builds statements and hands
// them to a Driver, which may be a plain database/sql wrapper, a
// transaction, or a wrapper that records statistics.
//
// # Supported Dialects
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite3"
//
// The dialect decides identifier quoting, argument placeholders, how an
// all-default row is inserted and how a generated key is read back.
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
// Tx extends ExecQuerier with Commit and Rollback. The routing layer only
// opens a transaction for an opted-in partition move; otherwise the caller's
// surrounding transaction (if any) applies.
//
// # Usage
//
//	import (
//	    "github.com/mobilizeio/partitioned/dialect"
//	    "github.com/mobilizeio/partitioned/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: SQL statement builders and driver implementation
//   - dialect/sql/sqlerr: driver-independent constraint error classification
package dialect
