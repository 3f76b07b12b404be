// Package partitioned routes record operations of logical tables to their
// physical partition tables.
//
// An entity is described by a schema.Descriptor and registered together
// with a partition.Router in a schema.Registry. The persist.Coordinator
// resolves the physical table of every create, update, delete and select
// from the record's partition-key values, builds a statement for that
// table only, and executes it on a dialect.Driver:
//
//	events, _ := schema.New("events",
//	    schema.Columns("id", "name", "created_at"),
//	    schema.PartitionKeys("created_at"),
//	)
//	reg := schema.NewRegistry()
//	reg.MustRegister(events, partition.By(partition.Monthly("created_at")))
//
//	coord := persist.New(drv, reg)
//	rec := persist.NewRecord(events, schema.NewAttributes("name", "signup", "created_at", "2020-01-15"))
//	id, err := coord.Create(ctx, rec) // INSERT INTO "events_2020_01" ...
//
// This package holds the error types shared by the sub-packages.
package partitioned
