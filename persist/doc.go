// Package persist coordinates create, update, delete and select operations
// on registered entities. For every operation the Coordinator completes the
// attribute set, resolves the physical table, builds the statement for that
// table and hands it to an Executor:
//
//	drv, err := sql.Open("postgres", dsn)
//	if err != nil {
//		return err
//	}
//	coord := persist.New(drv, registry, persist.WithLogger(logger))
//	rec := persist.NewRecord(events, schema.NewAttributes("name", "signup", "created_at", now))
//	id, err := coord.Create(ctx, rec) // INSERT INTO "events_2020_01" ...
//
// The Coordinator keeps no per-operation state, so operations on the same
// entity type may run concurrently.
package persist
