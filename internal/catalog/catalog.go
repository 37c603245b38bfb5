package catalog

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"provider_gateway/internal/models"
)

// Entry is one model in a catalog snapshot. Details carries the opaque
// cost/throughput metadata from the upstream document.
type Entry struct {
	Name     string            `json:"model_name"`
	Provider models.ProviderID `json:"provider"`
	Details  map[string]any    `json:"details,omitempty"`
}

// Snapshot is an immutable point-in-time listing of models. Refreshes build
// a new Snapshot and swap it in whole; entries are never mutated in place.
type Snapshot struct {
	entries   []Entry          // sorted by name
	byName    map[string]Entry // canonical index
	FetchedAt time.Time
}

// NewSnapshot builds a snapshot from entries. Duplicate names keep the first
// occurrence so names stay unique within a snapshot.
func NewSnapshot(entries []Entry, fetchedAt time.Time) *Snapshot {
	byName := make(map[string]Entry, len(entries))
	unique := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, seen := byName[e.Name]; seen {
			continue
		}
		e.Provider = models.CanonicalProviderID(string(e.Provider))
		byName[e.Name] = e
		unique = append(unique, e)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Name < unique[j].Name })

	return &Snapshot{
		entries:   unique,
		byName:    byName,
		FetchedAt: fetchedAt,
	}
}

// Len returns the number of models in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// ListFilters selects and pages catalog entries.
type ListFilters struct {
	Name     string // case-insensitive substring match
	Provider string // exact match, case-insensitive
	Limit    int    // <= 0 returns all matches
	Offset   int
}

// List returns the filtered page and the total match count before paging.
func (s *Snapshot) List(filters ListFilters) ([]Entry, int) {
	nameNeedle := strings.ToLower(filters.Name)
	providerNeedle := models.CanonicalProviderID(filters.Provider)

	var matched []Entry
	for _, e := range s.entries {
		if nameNeedle != "" && !strings.Contains(strings.ToLower(e.Name), nameNeedle) {
			continue
		}
		if filters.Provider != "" && e.Provider != providerNeedle {
			continue
		}
		matched = append(matched, e)
	}

	total := len(matched)

	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Entry{}, total
	}
	matched = matched[offset:]

	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}

	return matched, total
}

// Lookup finds a model by exact name.
func (s *Snapshot) Lookup(name string) (Entry, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// Catalog holds the current snapshot behind an atomic pointer. Readers load
// whichever snapshot is current; the refresher is the single writer and
// swaps complete snapshots only, so readers never block and never see a
// partially built catalog.
type Catalog struct {
	current atomic.Pointer[Snapshot]
}

// New returns a catalog primed with an empty snapshot so reads before the
// first refresh see "no models" rather than a nil dereference.
func New() *Catalog {
	c := &Catalog{}
	c.current.Store(NewSnapshot(nil, time.Time{}))
	return c
}

// Snapshot returns the current snapshot.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Replace atomically installs a new snapshot.
func (c *Catalog) Replace(s *Snapshot) {
	c.current.Store(s)
}
