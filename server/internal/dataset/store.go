package dataset

import (
	"time"
)

// Store is the read-only, in-memory telemetry dataset.
// Records are indexed by region at construction; the index and the records
// are never modified afterwards.
type Store struct {
	records  []Record
	byRegion map[string][]Record
	order    []string // regions in first-appearance order
	dists    map[string]Distribution
	source   string
	loadedAt time.Time
}

// New builds a Store from records, preserving their order. source is a
// human-readable description of where the records came from.
// The slice is copied; callers may reuse it.
func New(records []Record, source string) *Store {
	return newAt(records, source, time.Now())
}

func newAt(records []Record, source string, now time.Time) *Store {
	s := &Store{
		records:  make([]Record, len(records)),
		byRegion: make(map[string][]Record),
		dists:    make(map[string]Distribution),
		source:   source,
		loadedAt: now,
	}
	copy(s.records, records)

	for _, r := range s.records {
		if _, seen := s.byRegion[r.Region]; !seen {
			s.order = append(s.order, r.Region)
		}
		s.byRegion[r.Region] = append(s.byRegion[r.Region], r)
	}
	for region, recs := range s.byRegion {
		s.dists[region] = buildDistribution(recs)
	}
	return s
}

// Empty returns a Store with no records. It is what the server holds when a
// dataset failed to load.
func Empty(source string) *Store {
	return New(nil, source)
}

// RecordsForRegion returns every record whose region equals region, in
// original relative order. Unknown regions yield an empty slice.
// Callers must not modify the returned slice.
func (s *Store) RecordsForRegion(region string) []Record {
	return s.byRegion[region]
}

// HasRegion reports whether at least one record belongs to region.
func (s *Store) HasRegion(region string) bool {
	return len(s.byRegion[region]) > 0
}

// Len returns the total number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Empty reports whether the store holds no records at all.
// A nil Store is empty.
func (s *Store) Empty() bool {
	return s == nil || len(s.records) == 0
}

// Regions lists every region with its record count, in the order the region
// first appears in the dataset.
func (s *Store) Regions() []RegionSummary {
	out := make([]RegionSummary, 0, len(s.order))
	for _, region := range s.order {
		out = append(out, RegionSummary{Region: region, Records: len(s.byRegion[region])})
	}
	return out
}

// Distribution returns the approximate latency distribution of region and
// whether the region is known.
func (s *Store) Distribution(region string) (Distribution, bool) {
	d, ok := s.dists[region]
	return d, ok
}

// Source describes where the dataset was loaded from.
func (s *Store) Source() string {
	return s.source
}

// LoadedAt returns the time the store was built.
func (s *Store) LoadedAt() time.Time {
	return s.loadedAt
}
