package store

import (
	"context"
	"time"
)

// CachedQuery is a persisted semantic cache entry. Immutable once written
// except for deletion.
type CachedQuery struct {
	ID          string
	Question    string
	Embedding   []float32
	SQL         string
	Fingerprint string
	CreatedAt   time.Time
}

// Hint is a persisted data-interpretation hint injected into generation
// prompts
type Hint struct {
	ID        string
	Category  string
	Text      string
	Enabled   bool
	CreatedAt time.Time
}

// Stats summarizes the persisted cache state
type Stats struct {
	CachedQueries int64
	Fingerprints  int64
	Hints         int64
	DatabaseSize  int64
}

// Repository defines the persistence contract for the semantic cache and
// prompt hints
type Repository interface {
	Initialize(ctx context.Context) error

	InsertQuery(ctx context.Context, entry CachedQuery) error
	ListQueriesByFingerprint(ctx context.Context, fingerprint string) ([]CachedQuery, error)
	DeleteQuery(ctx context.Context, id string) error
	DeleteQueriesByFingerprint(ctx context.Context, fingerprint string) (int64, error)
	Clear(ctx context.Context) error

	ListHints(ctx context.Context, category string, enabledOnly bool) ([]Hint, error)
	InsertHint(ctx context.Context, hint Hint) error
	SetHintEnabled(ctx context.Context, id string, enabled bool) error
	DeleteHint(ctx context.Context, id string) error

	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}
