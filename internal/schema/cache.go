package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/logging"
)

// Snapshot is the durable {description, fingerprint} pair. The two fields
// are always written and swapped together.
type Snapshot struct {
	Fingerprint Fingerprint  `json:"fingerprint"`
	Description *Description `json:"description"`
	ExtractedAt time.Time    `json:"extracted_at"`
}

// FingerprintCache caches the last-known schema description and its
// fingerprint, persisting the pair as an atomically replaced JSON file so
// it survives process restarts. All reads and writes go through a single
// lock guarding the whole pair; a reader can never observe a description
// from one extraction with the fingerprint of another.
type FingerprintCache struct {
	mu        sync.RWMutex
	extractor Extractor
	path      string
	current   *Snapshot
	logger    *logging.Logger
}

// NewFingerprintCache creates a cache persisting to the given file path
func NewFingerprintCache(extractor Extractor, path string, logger *logging.Logger) *FingerprintCache {
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &FingerprintCache{
		extractor: extractor,
		path:      path,
		logger:    logger,
	}
}

// Current returns the active fingerprint and description. When a snapshot
// is already loaded and refresh is false, the cached pair is returned
// without touching the database. Otherwise the extractor runs, the new
// pair is persisted, and it replaces the old one entirely.
func (c *FingerprintCache) Current(ctx context.Context, refresh bool) (*Snapshot, error) {
	if !refresh {
		c.mu.RLock()
		snap := c.current
		c.mu.RUnlock()

		if snap != nil {
			return snap, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have populated the snapshot while we waited
	if !refresh && c.current != nil {
		return c.current, nil
	}

	if !refresh {
		if snap := c.loadSnapshot(); snap != nil {
			c.current = snap
			return snap, nil
		}
	}

	snap, err := c.extractLocked(ctx)
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Refresh always re-extracts the schema, swaps in the new pair, and
// returns it along with the fingerprint it replaced. The previous
// fingerprint is empty when no snapshot existed; callers use it to
// invalidate cache entries recorded under a schema that no longer
// matches reality.
func (c *FingerprintCache) Refresh(ctx context.Context) (*Snapshot, Fingerprint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var previous Fingerprint

	if c.current != nil {
		previous = c.current.Fingerprint
	} else if snap := c.loadSnapshot(); snap != nil {
		previous = snap.Fingerprint
	}

	snap, err := c.extractLocked(ctx)
	if err != nil {
		return nil, previous, err
	}

	return snap, previous, nil
}

// extractLocked runs the extractor and swaps in the resulting pair.
// Callers must hold the write lock.
func (c *FingerprintCache) extractLocked(ctx context.Context) (*Snapshot, error) {
	desc, err := c.extractor.Extract(ctx)
	if err != nil {
		return nil, err
	}

	fp, err := desc.Fingerprint()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to fingerprint schema")
	}

	snap := &Snapshot{
		Fingerprint: fp,
		Description: desc,
		ExtractedAt: time.Now().UTC(),
	}

	if err := c.persistSnapshot(snap); err != nil {
		// Persistence failure degrades durability, not correctness
		c.logger.Warnf("failed to persist schema snapshot: %v", err)
	}

	c.current = snap

	return snap, nil
}

// Invalidate drops the persisted schema state, forcing the next Current
// call to re-extract
func (c *FingerprintCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = nil

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		c.logger.Warnf("failed to remove schema snapshot file: %v", err)
	}
}

// loadSnapshot reads the persisted pair from disk. An unreadable snapshot
// is treated as absent: logged, never fatal.
func (c *FingerprintCache) loadSnapshot() *Snapshot {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warnf("failed to read schema snapshot: %v", err)
		}

		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		corrupt := errors.Wrap(err, errors.ErrTypeCacheCorruption, "schema snapshot unreadable")
		c.logger.ErrorWithErr("discarding corrupt schema snapshot", corrupt)

		return nil
	}

	if snap.Fingerprint == "" || snap.Description == nil {
		c.logger.Error("schema snapshot missing fingerprint or description, discarding")
		return nil
	}

	return &snap
}

// persistSnapshot writes the pair to a temp file and renames it into place
// so a crash mid-write never leaves a partial snapshot behind
func (c *FingerprintCache) persistSnapshot(snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}
