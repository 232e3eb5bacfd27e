package domain

import "time"

// LogLevel is the severity of an ingested browser console entry
type LogLevel string

const (
	LevelLog   LogLevel = "log"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelInfo  LogLevel = "info"
	LevelDebug LogLevel = "debug"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid reports whether l is one of the known console levels
func (l LogLevel) IsValid() bool {
	switch l {
	case LevelLog, LevelWarn, LevelError, LevelInfo, LevelDebug:
		return true
	}
	return false
}

// ConsoleEntry is one ingested browser console message. Entries are never
// mutated after insertion; they are only evicted or cleared.
type ConsoleEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	URL       string    `json:"url"`
	Port      string    `json:"port"`
	Project   string    `json:"project"`
	UserAgent string    `json:"user_agent,omitempty"`
	Stack     string    `json:"stack,omitempty"`
}

// GroupKey returns the composite key the console store partitions by
func (e ConsoleEntry) GroupKey() string {
	return e.Port + "|" + e.Project
}

// ConsoleFilter is a conjunction of optional predicates over console entries.
// A zero-valued field imposes no constraint.
type ConsoleFilter struct {
	Port    string
	Project string
	Levels  []LogLevel
	Since   time.Time
	Until   time.Time
	Limit   int
}

// MatchesLevel returns true if the level passes the filter's level set
func (f ConsoleFilter) MatchesLevel(level LogLevel) bool {
	if len(f.Levels) == 0 {
		return true
	}
	for _, l := range f.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// Matches reports whether the entry passes every predicate in the filter.
// Limit is not considered here; it is applied after sorting.
func (f ConsoleFilter) Matches(e ConsoleEntry) bool {
	if f.Port != "" && e.Port != f.Port {
		return false
	}
	if f.Project != "" && e.Project != f.Project {
		return false
	}
	if !f.MatchesLevel(e.Level) {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// ConsoleStats summarizes the console store contents
type ConsoleStats struct {
	TotalEntries int            `json:"total_entries"`
	Groups       int            `json:"groups"`
	PerPort      map[string]int `json:"per_port"`
}
