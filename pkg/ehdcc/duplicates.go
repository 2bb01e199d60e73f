package ehdcc

import (
	"github.com/paulmach/orb/planar"
)

// DefaultDuplicateThreshold is roughly one arc-minute in degrees, the
// distance below which two stations from different providers are considered
// the same physical site.
const DefaultDuplicateThreshold = 0.01667

// FindDuplicates flags groups of stations that sit within threshold of each
// other yet belong to different data providers. Distances are planar, in the
// units of the catalog geometry (degrees for GetStations output).
//
// Grouping is greedy and order dependent: stations are visited in table
// order, and a station already claimed by an earlier group is never
// reconsidered. A station can therefore stay unflagged even when it lies
// within threshold of a different-provider station, if that neighbour was
// consumed first. Providers are compared against the group's anchor only.
// This matches the established behavior of the catalog curation workflow.
func FindDuplicates(catalog *Catalog, threshold float64) [][]int64 {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}

	grouped := make(map[int64]bool)
	var groups [][]int64
	for i := range catalog.Stations {
		anchor := &catalog.Stations[i]
		if grouped[anchor.ID] {
			continue
		}

		var ids []int64
		for j := range catalog.Stations {
			if j == i {
				continue
			}
			other := &catalog.Stations[j]
			if grouped[other.ID] {
				continue
			}
			if planar.Distance(anchor.Geometry, other.Geometry) < threshold &&
				providerDiffers(anchor.ProviderID, other.ProviderID) {
				ids = append(ids, other.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}

		group := append([]int64{anchor.ID}, ids...)
		groups = append(groups, group)
		for _, id := range group {
			grouped[id] = true
		}
	}
	return groups
}

// providerDiffers treats an unknown provider as distinct from everything,
// including another unknown provider.
func providerDiffers(a, b *int64) bool {
	if a == nil || b == nil {
		return true
	}
	return *a != *b
}
