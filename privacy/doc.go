// Package privacy evaluates policies on statements before they reach the
// database.
//
// A Policy is an ordered list of rules. Each rule returns Allow, Deny or
// Skip (nil is Skip). Evaluation stops at the first Allow or Deny; a policy
// whose rules all skip allows the statement. Rules see the statement kind
// and the physical table, so a policy can freeze archived partitions:
//
//	policy := privacy.Policy{
//	    privacy.HasRole("archivist"),
//	    privacy.ReadOnlyTables(regexp.MustCompile(`^events_2019_`)),
//	}
//	coord := persist.New(drv, reg, persist.WithPolicy(policy))
//
// Decisions can be forced for a whole call chain with DecisionContext.
package privacy
