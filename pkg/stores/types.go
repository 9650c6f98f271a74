package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Preference is a persisted key/value setting.
type Preference struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JournalEntry is one recorded lifecycle event.
type JournalEntry struct {
	Seq       int64                  `json:"seq"`
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source,omitempty"`
	Key       string                 `json:"key,omitempty"`
	Message   string                 `json:"message"`
	Level     string                 `json:"level"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// JournalFilter narrows ListJournal results.
type JournalFilter struct {
	// Type limits results to one event type when set.
	Type string

	// Since excludes entries created before it when non-zero.
	Since time.Time

	// Limit caps the number of entries returned. Zero means 100.
	Limit int
}

// Store is the persistence interface used by preferences and the journal.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error

	// Preferences
	GetPreference(ctx context.Context, key string) (*Preference, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
	ListPreferences(ctx context.Context) ([]*Preference, error)

	// Journal
	AppendJournal(ctx context.Context, entry *JournalEntry) error
	ListJournal(ctx context.Context, filter JournalFilter) ([]*JournalEntry, error)
	PruneJournal(ctx context.Context, keep int) (int64, error)
}
