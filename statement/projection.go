package statement

import "slices"

// Projection returns the select list of a query on table. Known columns of
// explicit are qualified with the table; other entries, such as expressions
// or already qualified names, pass through unchanged. An empty explicit list
// selects "table.*".
func Projection(table string, explicit, known []string) []string {
	if len(explicit) == 0 {
		return []string{table + ".*"}
	}
	cols := make([]string, len(explicit))
	for i, c := range explicit {
		if slices.Contains(known, c) {
			cols[i] = table + "." + c
		} else {
			cols[i] = c
		}
	}
	return cols
}
