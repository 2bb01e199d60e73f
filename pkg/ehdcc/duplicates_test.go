package ehdcc

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func station(id int64, provider *int64, lon, lat float64) Station {
	return Station{ID: id, ProviderID: provider, Geometry: orb.Point{lon, lat}}
}

func provider(id int64) *int64 {
	return &id
}

func TestFindDuplicatesGreedyChain(t *testing.T) {
	// A, B, C on a line, 0.01 degrees apart. B is close to both A and C,
	// but A consumes B first, so C ends up unflagged.
	catalog := &Catalog{Stations: []Station{
		station(1, provider(1), 0, 0),
		station(2, provider(2), 0.01, 0),
		station(3, provider(1), 0.02, 0),
	}}

	groups := FindDuplicates(catalog, 0.01667)
	assert.Equal(t, [][]int64{{1, 2}}, groups)
}

func TestFindDuplicatesSameProviderNotFlagged(t *testing.T) {
	catalog := &Catalog{Stations: []Station{
		station(1, provider(1), 0, 0),
		station(2, provider(1), 0.001, 0),
	}}

	assert.Empty(t, FindDuplicates(catalog, 0.01667))
}

func TestFindDuplicatesFarApartNotFlagged(t *testing.T) {
	catalog := &Catalog{Stations: []Station{
		station(1, provider(1), 0, 0),
		station(2, provider(2), 1, 1),
	}}

	assert.Empty(t, FindDuplicates(catalog, 0.01667))
}

func TestFindDuplicatesUnknownProviderIsDistinct(t *testing.T) {
	// Both stations have no provider; an unknown provider never equals
	// anything, itself included.
	catalog := &Catalog{Stations: []Station{
		station(1, nil, 0, 0),
		station(2, nil, 0.001, 0),
	}}

	assert.Equal(t, [][]int64{{1, 2}}, FindDuplicates(catalog, 0.01667))
}

func TestFindDuplicatesThresholdIsExclusive(t *testing.T) {
	catalog := &Catalog{Stations: []Station{
		station(1, provider(1), 0, 0),
		station(2, provider(2), 0.01, 0),
	}}

	assert.Empty(t, FindDuplicates(catalog, 0.01))
	assert.Equal(t, [][]int64{{1, 2}}, FindDuplicates(catalog, 0.011))
}

func TestFindDuplicatesDefaultThreshold(t *testing.T) {
	catalog := &Catalog{Stations: []Station{
		station(1, provider(1), 0, 0),
		station(2, provider(2), 0.01, 0),
	}}

	// A non-positive threshold falls back to the default.
	assert.Equal(t, [][]int64{{1, 2}}, FindDuplicates(catalog, 0))
}

func TestFindDuplicatesNeverReusesAStation(t *testing.T) {
	// All four sit within threshold of each other. The first anchor
	// consumes both different-provider neighbours; station 3 then has no
	// ungrouped candidates left and emits no group.
	catalog := &Catalog{Stations: []Station{
		station(1, provider(1), 0, 0),
		station(2, provider(2), 0.001, 0),
		station(3, provider(1), 0.002, 0),
		station(4, provider(2), 0.003, 0),
	}}

	groups := FindDuplicates(catalog, 0.01667)
	assert.Equal(t, [][]int64{{1, 2, 4}}, groups)

	seen := make(map[int64]bool)
	for _, group := range groups {
		for _, id := range group {
			assert.False(t, seen[id], "station %d appears in more than one group", id)
			seen[id] = true
		}
	}
}

func TestFindDuplicatesIdempotent(t *testing.T) {
	catalog := &Catalog{Stations: []Station{
		station(1, provider(1), 0, 0),
		station(2, provider(2), 0.01, 0),
		station(3, provider(1), 0.02, 0),
	}}

	first := FindDuplicates(catalog, 0.01667)
	second := FindDuplicates(catalog, 0.01667)
	assert.Equal(t, first, second)
}

func TestFindDuplicatesDisjointGroups(t *testing.T) {
	catalog := &Catalog{Stations: []Station{
		station(1, provider(1), 0, 0),
		station(2, provider(2), 0.001, 0),
		station(3, provider(1), 5, 5),
		station(4, provider(3), 5.001, 5),
	}}

	assert.Equal(t, [][]int64{{1, 2}, {3, 4}}, FindDuplicates(catalog, 0.01667))
}
