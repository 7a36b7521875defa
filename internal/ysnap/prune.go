package ysnap

import "sort"

// PlanPrune returns the snapshots to delete so that at most maxToKeep
// remain, oldest first. A maxToKeep of zero or less keeps everything.
func PlanPrune(snaps []Snapshot, maxToKeep int) ([]Snapshot, error) {
	return PlanPruneKeeping(snaps, maxToKeep, "")
}

// PlanPruneKeeping is PlanPrune with the snapshot named keep counted as the
// newest, whatever its name sorts as. The just-published snapshot is passed
// here so a clock running behind the latest snapshot cannot prune it.
func PlanPruneKeeping(snaps []Snapshot, maxToKeep int, keep string) ([]Snapshot, error) {
	seen := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		if seen[s.Name] {
			return nil, &NamingCollisionError{Name: s.Name}
		}
		seen[s.Name] = true
	}

	if maxToKeep <= 0 || len(snaps) <= maxToKeep {
		return nil, nil
	}

	sorted := make([]Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.Slice(sorted, func(i, j int) bool {
		switch {
		case keep != "" && sorted[i].Name == keep:
			return false
		case keep != "" && sorted[j].Name == keep:
			return true
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted[:len(sorted)-maxToKeep], nil
}
