package ehdcc

import (
	"math"
	"sort"
	"time"
)

// TimeSeries is a time-indexed table with one column per variable long name.
// Gaps introduced by reindexing are NaN.
type TimeSeries struct {
	Resolution time.Duration
	Index      []time.Time
	Columns    []string

	values map[string][]float64
}

func (ts *TimeSeries) Len() int {
	return len(ts.Index)
}

// Column returns the values for a column, aligned with Index, or nil for an
// unknown column.
func (ts *TimeSeries) Column(name string) []float64 {
	return ts.values[name]
}

// Value returns the cell at (name, i), NaN when the column is unknown.
func (ts *TimeSeries) Value(name string, i int) float64 {
	vals, ok := ts.values[name]
	if !ok {
		return math.NaN()
	}
	return vals[i]
}

// NewTimeSeries builds a series from already aligned data: index and every
// column in values must have the same length, and columns fixes the column
// order. Use NaN for gaps.
func NewTimeSeries(resolution time.Duration, index []time.Time, columns []string, values map[string][]float64) *TimeSeries {
	return &TimeSeries{
		Resolution: resolution,
		Index:      index,
		Columns:    columns,
		values:     values,
	}
}

// sample is one (timestamp, value) pair from the API.
type sample struct {
	ts    time.Time
	value float64
}

// column is the assembled series of one variable before joining.
type column struct {
	name    string
	samples []sample
}

// newTimeSeries joins per-variable columns on timestamp. Within a column,
// samples are stable-sorted by timestamp and exact duplicates keep their
// first occurrence (overlapping batches produce those). The joined index is
// reindexed onto a regular grid at the given resolution when that grid is
// longer than the joined index, turning gaps into NaN rows.
func newTimeSeries(cols []column, resolution time.Duration) *TimeSeries {
	seen := make(map[int64]struct{})
	var stamps []time.Time
	for i := range cols {
		samples := cols[i].samples
		sort.SliceStable(samples, func(a, b int) bool {
			return samples[a].ts.Before(samples[b].ts)
		})
		cols[i].samples = dedupKeepFirst(samples)
		for _, s := range cols[i].samples {
			key := s.ts.UnixNano()
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				stamps = append(stamps, s.ts)
			}
		}
	}
	sort.Slice(stamps, func(a, b int) bool { return stamps[a].Before(stamps[b]) })

	index := stamps
	if len(stamps) > 0 && resolution > 0 {
		grid := regularIndex(stamps[0], stamps[len(stamps)-1], resolution)
		if len(grid) > len(stamps) {
			index = grid
		}
	}

	pos := make(map[int64]int, len(index))
	for i, t := range index {
		pos[t.UnixNano()] = i
	}

	values := make(map[string][]float64, len(cols))
	names := make([]string, 0, len(cols))
	for _, col := range cols {
		vals := make([]float64, len(index))
		for i := range vals {
			vals[i] = math.NaN()
		}
		for _, s := range col.samples {
			if i, ok := pos[s.ts.UnixNano()]; ok {
				vals[i] = s.value
			}
		}
		values[col.name] = vals
		names = append(names, col.name)
	}

	return &TimeSeries{
		Resolution: resolution,
		Index:      index,
		Columns:    names,
		values:     values,
	}
}

// dedupKeepFirst removes exact timestamp duplicates from a sorted sample
// slice, keeping the earliest-requested occurrence.
func dedupKeepFirst(samples []sample) []sample {
	if len(samples) < 2 {
		return samples
	}
	out := samples[:1]
	for _, s := range samples[1:] {
		if s.ts.Equal(out[len(out)-1].ts) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// regularIndex builds the inclusive [first, last] grid at the given step.
func regularIndex(first, last time.Time, step time.Duration) []time.Time {
	var grid []time.Time
	for t := first; !t.After(last); t = t.Add(step) {
		grid = append(grid, t)
	}
	return grid
}
