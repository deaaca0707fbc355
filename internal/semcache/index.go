package semcache

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/store"
)

// Embedder generates the vectors the index compares
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is a cache entry that cleared the similarity threshold
type Match struct {
	Entry      store.CachedQuery
	Similarity float64
}

// Index answers "have we seen a question like this before, against this
// exact schema?". Entries are scoped by schema fingerprint and compared
// by cosine similarity over their question embeddings. Lookups scan the
// fingerprint's entries linearly; cache sizes here are hundreds of
// entries, not millions, so a flat scan beats maintaining an ANN
// structure.
type Index struct {
	repo      store.Repository
	embedder  Embedder
	threshold float64
	logger    *logging.Logger
}

// NewIndex creates a semantic cache index backed by the given repository
func NewIndex(
	repo store.Repository,
	embedder Embedder,
	threshold float64,
	logger *logging.Logger,
) *Index {
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Index{
		repo:      repo,
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
	}
}

// Threshold returns the configured similarity threshold
func (idx *Index) Threshold() float64 {
	return idx.threshold
}

// Lookup returns the best cached entry for the question under the given
// fingerprint, or nil when nothing clears the threshold. Entries recorded
// under any other fingerprint are never considered. On an exact tie the
// most recently inserted entry wins.
func (idx *Index) Lookup(
	ctx context.Context,
	question string,
	fingerprint string,
) (*Match, error) {
	vec, err := idx.embedder.Embed(ctx, question)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to embed question")
	}

	entries, err := idx.repo.ListQueriesByFingerprint(ctx, fingerprint)
	if err != nil {
		// A broken cache degrades to a miss, never to a failed request.
		idx.logger.WithError(errors.Wrap(err, errors.ErrTypeCacheCorruption,
			"failed to load cache entries")).Warn("treating cache as empty")

		return nil, nil
	}

	var best *Match

	for i := range entries {
		entry := entries[i]
		if len(entry.Embedding) != len(vec) {
			idx.logger.Warnf("skipping cache entry %s with mismatched embedding size", entry.ID)
			continue
		}

		sim := cosineSimilarity(vec, entry.Embedding)
		if sim < idx.threshold {
			continue
		}

		// Entries arrive oldest first, so >= prefers the newest tie.
		if best == nil || sim >= best.Similarity {
			best = &Match{Entry: entry, Similarity: sim}
		}
	}

	return best, nil
}

// Insert records a question/SQL pair under the given fingerprint. The
// embedding is computed before the write, and the single repository
// insert makes the entry visible to concurrent lookups atomically.
func (idx *Index) Insert(
	ctx context.Context,
	question string,
	generatedSQL string,
	fingerprint string,
) (*store.CachedQuery, error) {
	vec, err := idx.embedder.Embed(ctx, question)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to embed question")
	}

	entry := store.CachedQuery{
		ID:          uuid.New().String(),
		Question:    question,
		Embedding:   vec,
		SQL:         generatedSQL,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
	}

	if err := idx.repo.InsertQuery(ctx, entry); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to store cache entry")
	}

	return &entry, nil
}

// Remove deletes a single entry, used when a cached statement no longer
// validates against the live database
func (idx *Index) Remove(ctx context.Context, id string) error {
	if err := idx.repo.DeleteQuery(ctx, id); err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "failed to remove cache entry")
	}

	return nil
}

// InvalidateFingerprint eagerly deletes every entry recorded under the
// given fingerprint and returns how many were removed
func (idx *Index) InvalidateFingerprint(ctx context.Context, fingerprint string) (int64, error) {
	n, err := idx.repo.DeleteQueriesByFingerprint(ctx, fingerprint)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrTypeInternal, "failed to invalidate cache entries")
	}

	if n > 0 {
		idx.logger.WithFields(map[string]interface{}{
			"fingerprint": fingerprint,
			"removed":     n,
		}).Info("invalidated stale cache entries")
	}

	return n, nil
}

// Clear removes every cache entry regardless of fingerprint
func (idx *Index) Clear(ctx context.Context) error {
	if err := idx.repo.Clear(ctx); err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "failed to clear cache")
	}

	return nil
}

// cosineSimilarity calculates similarity between two unit-scale vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
