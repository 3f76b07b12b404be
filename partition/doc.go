// Package partition resolves the physical table of an operation on a
// partitioned entity. Resolution is a pure function of the entity
// descriptor and the partition-key values of the operation: it performs no
// I/O, keeps no state and is safe to call concurrently.
//
// Naming schemes turn partition-key values into a table suffix:
//
//	partition.By(partition.Monthly("created_at"))           // events_2020_01
//	partition.By(partition.HashMod("account_id", 16))       // events_07
//	partition.By(partition.Composite(
//		partition.ByValue("region"),
//		partition.Yearly("created_at"),
//	))                                                      // events_eu_2020
//
// Schemes can also be looked up by name, which is how configuration files
// declare them (see Build).
package partition
