package repository

// DiffIDs computes the connect/disconnect delta that moves a relation from
// current to desired membership: toAdd = desired - current and
// toRemove = current - desired. Order within each slice follows the input
// order; ids present in both sets are untouched.
func DiffIDs(current, desired []string) (toAdd, toRemove []string) {
	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}
	desiredSet := make(map[string]bool, len(desired))
	for _, id := range desired {
		desiredSet[id] = true
	}

	// A repeated desired id yields one add, not a duplicate join row.
	added := make(map[string]bool, len(desired))
	for _, id := range desired {
		if !currentSet[id] && !added[id] {
			toAdd = append(toAdd, id)
			added[id] = true
		}
	}
	for _, id := range current {
		if !desiredSet[id] {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}
