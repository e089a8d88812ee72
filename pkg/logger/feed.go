package logger

import (
	"sync"
	"time"
)

// Severity classifies a run-feed entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultFeedCap is the maximum number of entries a Feed retains.
const DefaultFeedCap = 500

// Entry is a single timestamped message in the user-facing run feed.
type Entry struct {
	Time     time.Time
	Severity Severity
	Message  string
}

// Feed is the append-only, ordered, capped feed of user-facing run messages.
// When the cap is exceeded the oldest entries are dropped first.
type Feed struct {
	mu      sync.Mutex
	cap     int
	entries []Entry
	logger  Logger
}

// NewFeed creates a run feed with the given capacity. A capacity of zero or
// less uses DefaultFeedCap. Entries are mirrored to the structured logger.
func NewFeed(capacity int, log Logger) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCap
	}
	if log == nil {
		log = GetLogger()
	}
	return &Feed{cap: capacity, logger: log}
}

func (f *Feed) append(sev Severity, msg string) {
	f.mu.Lock()
	f.entries = append(f.entries, Entry{Time: time.Now(), Severity: sev, Message: msg})
	if over := len(f.entries) - f.cap; over > 0 {
		f.entries = f.entries[over:]
	}
	f.mu.Unlock()

	switch sev {
	case SeverityWarning:
		f.logger.Warn(msg)
	case SeverityError:
		f.logger.Error(msg)
	default:
		f.logger.Info(msg)
	}
}

// Info appends an informational entry.
func (f *Feed) Info(msg string) { f.append(SeverityInfo, msg) }

// Success appends a success entry.
func (f *Feed) Success(msg string) { f.append(SeveritySuccess, msg) }

// Warning appends a warning entry.
func (f *Feed) Warning(msg string) { f.append(SeverityWarning, msg) }

// Error appends an error entry.
func (f *Feed) Error(msg string) { f.append(SeverityError, msg) }

// Entries returns a copy of the retained entries, oldest first.
func (f *Feed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len returns the number of retained entries.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
