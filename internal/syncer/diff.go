// Package syncer pulls the backend catalog into the local store through a
// fixed pipeline of stages.
package syncer

import (
	"sort"

	"github.com/falconrep/falconrep/internal/remote"
)

// Diff is the outcome of comparing local change markers against the
// backend's product stamps.
type Diff struct {
	// Fetch lists products whose marker is absent locally or differs.
	Fetch []int64
	// Delete lists products gone from the backend or marked unavailable.
	Delete []int64
}

// Empty reports whether the catalog is already up to date.
func (d Diff) Empty() bool {
	return len(d.Fetch) == 0 && len(d.Delete) == 0
}

// ComputeDiff compares local markers with backend stamps. Markers are opaque
// strings compared only for equality; they are never parsed as dates.
func ComputeDiff(local map[int64]string, stamps []remote.ProductStamp) Diff {
	var d Diff
	seen := make(map[int64]bool, len(stamps))
	for _, s := range stamps {
		id := s.ItemID.Int64()
		seen[id] = true
		if s.Unavailable() {
			d.Delete = append(d.Delete, id)
			continue
		}
		marker, ok := local[id]
		if !ok || marker != s.LastUpdated {
			d.Fetch = append(d.Fetch, id)
		}
	}
	for id := range local {
		if !seen[id] {
			d.Delete = append(d.Delete, id)
		}
	}
	sort.Slice(d.Fetch, func(i, j int) bool { return d.Fetch[i] < d.Fetch[j] })
	sort.Slice(d.Delete, func(i, j int) bool { return d.Delete[i] < d.Delete[j] })
	return d
}
