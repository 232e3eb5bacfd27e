// Package console implements the multi-tenant browser console log store.
// Entries arrive from the HTTP ingestion path, are grouped by the composite
// key port|project, and are bounded by a per-group cap and a global cap.
package console

import (
	"regexp"
	"sort"
	"sync"

	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/domain"
)

// portPattern extracts the port from dev-server URLs like http://localhost:3000/x
var portPattern = regexp.MustCompile(`localhost:(\d+)`)

// StoreConfig holds configuration for the console store
type StoreConfig struct {
	GroupCap  int // max entries per port|project group
	GlobalCap int // max entries across all groups
}

// DefaultStoreConfig returns the default configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		GroupCap:  constants.DefaultConsoleGroupCap,
		GlobalCap: constants.DefaultConsoleGlobalCap,
	}
}

// Store holds ingested console entries. It is constructed explicitly and
// passed to the ingestion endpoint and the query tools; there is no ambient
// global instance.
type Store struct {
	mu     sync.RWMutex
	groups map[string][]domain.ConsoleEntry
	config StoreConfig
	nextID int64
}

// NewStore creates a console store
func NewStore(config StoreConfig) *Store {
	if config.GroupCap <= 0 {
		config.GroupCap = DefaultStoreConfig().GroupCap
	}
	if config.GlobalCap <= 0 {
		config.GlobalCap = DefaultStoreConfig().GlobalCap
	}
	return &Store{
		groups: make(map[string][]domain.ConsoleEntry),
		config: config,
	}
}

// Add resolves missing port/project from the entry URL, assigns a unique id,
// appends the entry to its group, and enforces both caps. The stored entry
// (with resolved fields and id) is returned.
func (s *Store) Add(entry domain.ConsoleEntry) domain.ConsoleEntry {
	resolveOrigin(&entry)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID

	key := entry.GroupKey()
	group := append(s.groups[key], entry)

	// Per-group cap: drop oldest first.
	if over := len(group) - s.config.GroupCap; over > 0 {
		group = group[over:]
	}
	s.groups[key] = group

	s.evictGlobal()

	return entry
}

// evictGlobal enforces the global cap by distributing the required removals
// evenly across groups. This is intentionally not globally FIFO: it costs
// O(groups) instead of maintaining a cross-group heap.
// Caller must hold s.mu.
func (s *Store) evictGlobal() {
	total := 0
	for _, g := range s.groups {
		total += len(g)
	}

	excess := total - s.config.GlobalCap
	if excess <= 0 || len(s.groups) == 0 {
		return
	}

	perGroup := excess/len(s.groups) + 1
	for key, g := range s.groups {
		drop := perGroup
		if drop > len(g) {
			drop = len(g)
		}
		if drop == 0 {
			continue
		}
		if drop == len(g) {
			delete(s.groups, key)
			continue
		}
		s.groups[key] = g[drop:]
	}
}

// Get returns entries matching the filter, newest first. The filter's limit
// is applied after combining and sorting all matching entries.
func (s *Store) Get(filter domain.ConsoleFilter) []domain.ConsoleEntry {
	s.mu.RLock()

	var matched []domain.ConsoleEntry
	for _, group := range s.groups {
		for _, e := range group {
			if filter.Matches(e) {
				matched = append(matched, e)
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched
}

// Clear drops stored groups and returns the number of entries removed.
// With neither dimension given, everything is dropped. With either given,
// a group is dropped when its port OR its project matches the supplied
// value.
func (s *Store) Clear(port, project string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	if port == "" && project == "" {
		for _, g := range s.groups {
			removed += len(g)
		}
		s.groups = make(map[string][]domain.ConsoleEntry)
		return removed
	}

	for key, g := range s.groups {
		if len(g) == 0 {
			delete(s.groups, key)
			continue
		}
		if (port != "" && g[0].Port == port) || (project != "" && g[0].Project == project) {
			removed += len(g)
			delete(s.groups, key)
		}
	}
	return removed
}

// Stats recomputes store statistics on demand
func (s *Store) Stats() domain.ConsoleStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.ConsoleStats{
		Groups:  len(s.groups),
		PerPort: make(map[string]int),
	}
	for _, g := range s.groups {
		stats.TotalEntries += len(g)
		if len(g) > 0 {
			stats.PerPort[g[0].Port] += len(g)
		}
	}
	return stats
}

// resolveOrigin fills missing Port and Project from the entry URL
func resolveOrigin(entry *domain.ConsoleEntry) {
	if entry.Port == "" {
		if m := portPattern.FindStringSubmatch(entry.URL); m != nil {
			entry.Port = m[1]
		}
	}
	if entry.Project == "" {
		if entry.Port != "" {
			entry.Project = "localhost:" + entry.Port
		} else {
			entry.Project = "unknown"
		}
	}
}
