package engine_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/engine"
	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/hints"
	"github.com/askdb/askdb/internal/retry"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/semcache"
	"github.com/askdb/askdb/internal/testutil"
)

type fixture struct {
	engine    *engine.Engine
	extractor *testutil.MockExtractor
	generator *testutil.MockGenerator
	executor  *testutil.MockExecutor
	repo      *testutil.MemoryRepository
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()

	f := &fixture{
		extractor: testutil.NewMockExtractor(),
		generator: testutil.NewMockGenerator(testutil.WithGeneratorResponses(
			testutil.GeneratorResponse{SQL: "SELECT COUNT(*) FROM users"},
		)),
		executor: testutil.NewMockExecutor(),
		repo:     testutil.NewMemoryRepository(),
	}

	for _, opt := range opts {
		opt(f)
	}

	embedder := testutil.NewFixedEmbedder(map[string][]float32{
		"how many users are there": {1, 0, 0},
		"an unrelated question":    {0, 1, 0},
	})

	snapshotPath := filepath.Join(t.TempDir(), "schema_snapshot.json")
	schemaCache := schema.NewFingerprintCache(f.extractor, snapshotPath, nil)
	index := semcache.NewIndex(f.repo, embedder, 0.85, nil)
	controller := retry.NewController(f.generator, f.executor, 3, nil)

	f.engine = engine.New(schemaCache, index, controller, f.executor,
		hints.NewManager(f.repo), false, nil)

	return f
}

func TestAskGeneratesAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	answer, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	assert.False(t, answer.FromCache)
	assert.Equal(t, "SELECT COUNT(*) FROM users", answer.SQL)
	assert.NotNil(t, answer.Result)
	assert.NotEmpty(t, answer.Fingerprint)
	assert.Equal(t, 1, f.generator.CallCount())
	assert.Equal(t, 1, f.repo.QueryCount())
}

func TestAskSecondTimeHitsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	answer, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	assert.True(t, answer.FromCache)
	assert.GreaterOrEqual(t, answer.CacheSimilarity, 0.99)
	assert.Equal(t, "SELECT COUNT(*) FROM users", answer.SQL)

	// The generator must not run for a cache hit.
	assert.Equal(t, 1, f.generator.CallCount())
}

func TestAskForceNoCacheInvokesGenerator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	answer, err := f.engine.Ask(ctx, "how many users are there",
		engine.Options{ForceNoCache: true})
	require.NoError(t, err)

	assert.False(t, answer.FromCache)
	assert.Equal(t, 2, f.generator.CallCount())
}

func TestAskUnrelatedQuestionMissesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	answer, err := f.engine.Ask(ctx, "an unrelated question", engine.Options{})
	require.NoError(t, err)

	assert.False(t, answer.FromCache)
	assert.Equal(t, 2, f.generator.CallCount())
}

func TestAskSchemaExtractedOncePerProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	_, err = f.engine.Ask(ctx, "an unrelated question", engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.extractor.CallCount())
}

func TestSchemaDriftInvalidatesOldEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.QueryCount())

	// The schema changes underneath us.
	f.extractor.SetDescription(&schema.Description{
		Tables: []schema.Table{
			{
				Name: "users",
				Columns: []schema.Column{
					{Name: "id", Type: "integer"},
					{Name: "email", Type: "text", Nullable: true},
					{Name: "deleted_at", Type: "timestamptz", Nullable: true},
				},
			},
		},
	})

	answer, err := f.engine.Ask(ctx, "how many users are there",
		engine.Options{RefreshSchema: true})
	require.NoError(t, err)

	assert.NotEqual(t, first.Fingerprint, answer.Fingerprint)
	assert.False(t, answer.FromCache)
	assert.Equal(t, 2, f.generator.CallCount())

	// Only the entry written under the new fingerprint remains.
	entries, err := f.repo.ListQueriesByFingerprint(ctx, first.Fingerprint)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, f.repo.QueryCount())
}

func TestUnchangedSchemaKeepsEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	answer, err := f.engine.Ask(ctx, "how many users are there",
		engine.Options{RefreshSchema: true})
	require.NoError(t, err)

	assert.True(t, answer.FromCache)
	assert.Equal(t, 1, f.repo.QueryCount())
}

func TestStaleCacheHitIsDiscarded(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.executor = testutil.NewMockExecutor(
			testutil.WithValidateError("SELECT COUNT(*) FROM old_users",
				errors.New(errors.ErrTypeExecution, "relation does not exist")),
		)
		f.generator = testutil.NewMockGenerator(testutil.WithGeneratorResponses(
			testutil.GeneratorResponse{SQL: "SELECT COUNT(*) FROM old_users"},
			testutil.GeneratorResponse{SQL: "SELECT COUNT(*) FROM users"},
		))
	})
	ctx := context.Background()

	// Seeds the cache with SQL that will later fail validation.
	_, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	answer, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)

	assert.False(t, answer.FromCache)
	assert.Equal(t, "SELECT COUNT(*) FROM users", answer.SQL)
	assert.Equal(t, 2, f.generator.CallCount())
}

func TestFailedRunIsNeverCached(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.generator = testutil.NewMockGenerator(testutil.WithGeneratorResponses(
			testutil.GeneratorResponse{SQL: "SELECT bad FROM nowhere"},
		))
		f.executor = testutil.NewMockExecutor(
			testutil.WithExecuteError("SELECT bad FROM nowhere",
				errors.New(errors.ErrTypeExecution, "relation does not exist")),
		)
	})
	ctx := context.Background()

	answer, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.Error(t, err)
	require.NotNil(t, answer)

	assert.Len(t, answer.Attempts, 3)
	assert.Equal(t, 0, f.repo.QueryCount())
}

func TestExtractionFailureSurfaces(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.extractor = testutil.NewMockExtractor(testutil.WithExtractError(
			errors.New(errors.ErrTypeIntrospection, "permission denied for pg_catalog")))
	})

	_, err := f.engine.Ask(context.Background(), "how many users are there", engine.Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeIntrospection))
	assert.Equal(t, 0, f.generator.CallCount())
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ask(ctx, "how many users are there", engine.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, f.repo.QueryCount())

	require.NoError(t, f.engine.ClearCache(ctx))
	assert.Equal(t, 0, f.repo.QueryCount())
}
