// Package schema holds the static metadata of persisted entities: the
// logical table, primary key, partition-key columns and id generation of
// every entity type, and the per-operation attribute sets built from them.
//
// A Descriptor is created once at registration and shared read-only by all
// operations:
//
//	desc, err := schema.New("events",
//		schema.Columns("id", "name", "created_at"),
//		schema.PartitionKeys("created_at"),
//		schema.Sequence("events_id_seq"),
//	)
//
// Routable entity types register a Router alongside their descriptor:
//
//	reg := schema.NewRegistry()
//	err = reg.Register(desc, partition.By(partition.Monthly("created_at")))
//
// The Registry decides the routing capability once. Operations never inspect
// an entity type for it at run time.
package schema
