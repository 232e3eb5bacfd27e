// Package logbuf provides the bounded in-memory log buffer owned by each
// managed server. The buffer enforces two independent limits on every append:
// oversized chunks are truncated, and once the line cap is exceeded the oldest
// lines are dropped from the front.
package logbuf

import (
	"strings"
	"sync"
	"time"
)

// TruncationMarker is appended to chunks cut at the chunk limit
const TruncationMarker = "... [truncated]"

// Line is a single timestamped buffered log line
type Line struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// Buffer is a capped ordered sequence of timestamped log lines.
// It is safe for concurrent use: output reader goroutines append while
// check/logs/list read.
type Buffer struct {
	mu         sync.RWMutex
	lines      []Line
	capacity   int
	chunkLimit int
}

// New creates a buffer holding at most capacity lines, truncating any single
// chunk longer than chunkLimit characters.
func New(capacity, chunkLimit int) *Buffer {
	if capacity <= 0 {
		capacity = 500
	}
	if chunkLimit <= 0 {
		chunkLimit = 1000
	}
	return &Buffer{
		lines:      make([]Line, 0, capacity),
		capacity:   capacity,
		chunkLimit: chunkLimit,
	}
}

// Append adds a chunk to the buffer, truncating it if oversized and dropping
// the oldest lines once the buffer exceeds its capacity.
func (b *Buffer) Append(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(text) > b.chunkLimit {
		text = text[:b.chunkLimit] + TruncationMarker
	}

	b.lines = append(b.lines, Line{Timestamp: time.Now(), Text: text})

	if over := len(b.lines) - b.capacity; over > 0 {
		// Drop from the front rather than shifting in place so readers
		// holding a previous snapshot are unaffected.
		b.lines = append(make([]Line, 0, b.capacity), b.lines[over:]...)
	}
}

// Last returns the most recent n lines in chronological order
func (b *Buffer) Last(n int) []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || len(b.lines) == 0 {
		return nil
	}
	if n > len(b.lines) {
		n = len(b.lines)
	}

	result := make([]Line, n)
	copy(result, b.lines[len(b.lines)-n:])
	return result
}

// All returns every buffered line in chronological order
func (b *Buffer) All() []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.lines) == 0 {
		return nil
	}
	result := make([]Line, len(b.lines))
	copy(result, b.lines)
	return result
}

// TailText returns the most recent n lines joined by newlines
func (b *Buffer) TailText(n int) string {
	lines := b.Last(n)
	if len(lines) == 0 {
		return ""
	}
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

// TailStrings returns the raw text of the most recent n lines
func (b *Buffer) TailStrings(n int) []string {
	lines := b.Last(n)
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return texts
}

// Len returns the current number of buffered lines
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Capacity returns the maximum number of lines the buffer retains
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Clear removes all buffered lines
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = b.lines[:0]
}
