package schema_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/testutil"
)

func snapshotPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "schema_snapshot.json")
}

func TestCurrentExtractsOnce(t *testing.T) {
	extractor := testutil.NewMockExtractor()
	cache := schema.NewFingerprintCache(extractor, snapshotPath(t), nil)
	ctx := context.Background()

	first, err := cache.Current(ctx, false)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Fingerprint)
	assert.NotNil(t, first.Description)

	second, err := cache.Current(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, 1, extractor.CallCount())
}

func TestSnapshotPairIsConsistent(t *testing.T) {
	extractor := testutil.NewMockExtractor()
	cache := schema.NewFingerprintCache(extractor, snapshotPath(t), nil)

	snap, err := cache.Current(context.Background(), false)
	require.NoError(t, err)

	recomputed, err := snap.Description.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprint, recomputed)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	path := snapshotPath(t)
	ctx := context.Background()

	first := schema.NewFingerprintCache(testutil.NewMockExtractor(), path, nil)

	snap, err := first.Current(ctx, false)
	require.NoError(t, err)

	// A fresh instance over the same path must answer from disk.
	restartedExtractor := testutil.NewMockExtractor()
	restarted := schema.NewFingerprintCache(restartedExtractor, path, nil)

	loaded, err := restarted.Current(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, snap.Fingerprint, loaded.Fingerprint)
	assert.Equal(t, 0, restartedExtractor.CallCount())
}

func TestCorruptSnapshotTriggersReextraction(t *testing.T) {
	path := snapshotPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	extractor := testutil.NewMockExtractor()
	cache := schema.NewFingerprintCache(extractor, path, nil)

	snap, err := cache.Current(context.Background(), false)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Fingerprint)
	assert.Equal(t, 1, extractor.CallCount())
}

func TestIncompleteSnapshotIsDiscarded(t *testing.T) {
	path := snapshotPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"fingerprint": "abc"}`), 0600))

	extractor := testutil.NewMockExtractor()
	cache := schema.NewFingerprintCache(extractor, path, nil)

	_, err := cache.Current(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.CallCount())
}

func TestRefreshReportsPreviousFingerprint(t *testing.T) {
	extractor := testutil.NewMockExtractor()
	cache := schema.NewFingerprintCache(extractor, snapshotPath(t), nil)
	ctx := context.Background()

	snap, previous, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, previous)

	// Unchanged schema: previous equals current.
	again, previous, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprint, previous)
	assert.Equal(t, snap.Fingerprint, again.Fingerprint)

	// Changed schema: previous is the replaced fingerprint.
	extractor.SetDescription(&schema.Description{
		Tables: []schema.Table{
			{Name: "widgets", Columns: []schema.Column{{Name: "id", Type: "integer"}}},
		},
	})

	changed, previous, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprint, previous)
	assert.NotEqual(t, previous, changed.Fingerprint)
}

func TestInvalidateForcesReextraction(t *testing.T) {
	path := snapshotPath(t)
	extractor := testutil.NewMockExtractor()
	cache := schema.NewFingerprintCache(extractor, path, nil)
	ctx := context.Background()

	_, err := cache.Current(ctx, false)
	require.NoError(t, err)

	cache.Invalidate()

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = cache.Current(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, extractor.CallCount())
}

func TestExtractionErrorSurfaces(t *testing.T) {
	extractor := testutil.NewMockExtractor(testutil.WithExtractError(assert.AnError))
	cache := schema.NewFingerprintCache(extractor, snapshotPath(t), nil)

	_, err := cache.Current(context.Background(), false)
	require.Error(t, err)
}
