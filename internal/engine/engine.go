// Package engine orchestrates a question's full path: schema snapshot,
// cache lookup, generation with retries, and the cache write-back.
package engine

import (
	"context"
	"sync"

	"github.com/askdb/askdb/internal/hints"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/retry"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/semcache"
	"github.com/askdb/askdb/internal/sqlexec"
)

// Options adjusts how a single question is answered
type Options struct {
	// ForceNoCache skips the cache lookup, always invoking the generator
	ForceNoCache bool

	// RefreshSchema forces a fresh extraction even when a snapshot exists
	RefreshSchema bool
}

// Answer is the result of answering a question
type Answer struct {
	SQL             string
	Result          *sqlexec.Result
	Attempts        []retry.Attempt
	FromCache       bool
	CacheSimilarity float64
	Fingerprint     string
}

// Engine wires the schema cache, semantic cache, and retry loop together
type Engine struct {
	schemaCache   *schema.FingerprintCache
	index         *semcache.Index
	controller    *retry.Controller
	executor      sqlexec.Executor
	hints         *hints.Manager
	cacheDisabled bool
	logger        *logging.Logger

	mu     sync.Mutex
	primed bool
}

// New creates an engine over the given components
func New(
	schemaCache *schema.FingerprintCache,
	index *semcache.Index,
	controller *retry.Controller,
	executor sqlexec.Executor,
	hintManager *hints.Manager,
	cacheDisabled bool,
	logger *logging.Logger,
) *Engine {
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Engine{
		schemaCache:   schemaCache,
		index:         index,
		controller:    controller,
		executor:      executor,
		hints:         hintManager,
		cacheDisabled: cacheDisabled,
		logger:        logger,
	}
}

// Ask answers a natural-language question against the target database.
// On failure the returned Answer still carries the attempt history so
// callers can show what was tried.
func (e *Engine) Ask(ctx context.Context, question string, opts Options) (*Answer, error) {
	snap, err := e.snapshot(ctx, opts.RefreshSchema)
	if err != nil {
		return nil, err
	}

	fingerprint := string(snap.Fingerprint)

	if !opts.ForceNoCache && !e.cacheDisabled {
		if answer := e.tryCache(ctx, question, fingerprint); answer != nil {
			return answer, nil
		}
	}

	hintTexts, err := e.hints.EnabledTexts(ctx)
	if err != nil {
		// Hints sweeten the prompt; losing them is not worth failing
		// the question.
		e.logger.Warnf("failed to load hints: %v", err)
	}

	outcome, err := e.controller.Run(ctx, question, snap.Description.PromptContext(), hintTexts)
	if err != nil {
		return &Answer{Attempts: outcome.Attempts, Fingerprint: fingerprint}, err
	}

	if !e.cacheDisabled {
		if _, err := e.index.Insert(ctx, question, outcome.SQL, fingerprint); err != nil {
			e.logger.Warnf("failed to cache generated SQL: %v", err)
		}
	}

	return &Answer{
		SQL:         outcome.SQL,
		Result:      outcome.Result,
		Attempts:    outcome.Attempts,
		Fingerprint: fingerprint,
	}, nil
}

// RefreshSchema re-extracts the schema and invalidates cache entries
// recorded under the old fingerprint when it changed. It returns the new
// snapshot.
func (e *Engine) RefreshSchema(ctx context.Context) (*schema.Snapshot, error) {
	snap, previous, err := e.schemaCache.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	if previous != "" && previous != snap.Fingerprint {
		if _, err := e.index.InvalidateFingerprint(ctx, string(previous)); err != nil {
			e.logger.Warnf("failed to invalidate stale cache entries: %v", err)
		}
	}

	e.mu.Lock()
	e.primed = true
	e.mu.Unlock()

	return snap, nil
}

// snapshot returns the current schema pair. The first question of a
// process always re-extracts so that drift since the last run is caught;
// later questions reuse the snapshot unless a refresh is requested.
func (e *Engine) snapshot(ctx context.Context, refresh bool) (*schema.Snapshot, error) {
	e.mu.Lock()
	primed := e.primed
	e.mu.Unlock()

	if !primed || refresh {
		return e.RefreshSchema(ctx)
	}

	return e.schemaCache.Current(ctx, false)
}

// tryCache attempts to answer from the semantic cache. A hit is
// revalidated against the live database before the stored statement is
// trusted; a statement that no longer validates is removed and the
// question falls through to generation.
func (e *Engine) tryCache(ctx context.Context, question, fingerprint string) *Answer {
	match, err := e.index.Lookup(ctx, question, fingerprint)
	if err != nil {
		e.logger.Warnf("cache lookup failed: %v", err)
		return nil
	}

	if match == nil {
		return nil
	}

	if err := e.executor.Validate(ctx, match.Entry.SQL); err != nil {
		e.logger.WithFields(map[string]interface{}{
			"entry": match.Entry.ID,
			"error": err.Error(),
		}).Info("cached SQL no longer validates, discarding entry")

		if err := e.index.Remove(ctx, match.Entry.ID); err != nil {
			e.logger.Warnf("failed to remove stale cache entry: %v", err)
		}

		return nil
	}

	result, err := e.executor.Execute(ctx, match.Entry.SQL)
	if err != nil {
		e.logger.Warnf("cached SQL failed to execute, discarding entry: %v", err)

		if err := e.index.Remove(ctx, match.Entry.ID); err != nil {
			e.logger.Warnf("failed to remove stale cache entry: %v", err)
		}

		return nil
	}

	e.logger.WithFields(map[string]interface{}{
		"similarity": match.Similarity,
		"question":   match.Entry.Question,
	}).Debug("answered from cache")

	return &Answer{
		SQL:             match.Entry.SQL,
		Result:          result,
		FromCache:       true,
		CacheSimilarity: match.Similarity,
		Fingerprint:     fingerprint,
	}
}

// ClearCache removes every cached query regardless of fingerprint
func (e *Engine) ClearCache(ctx context.Context) error {
	return e.index.Clear(ctx)
}
