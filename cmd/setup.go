package cmd

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/embedding"
	"github.com/askdb/askdb/internal/engine"
	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/hints"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/retry"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/semcache"
	"github.com/askdb/askdb/internal/sqlexec"
	"github.com/askdb/askdb/internal/store"
)

// application bundles every wired component a command might need
type application struct {
	cfg    *config.Config
	repo   store.Repository
	engine *engine.Engine
	hints  *hints.Manager
}

// newStore opens and initializes the local cache database. Commands that
// never touch the source database (cache stats, hints) use this alone.
func newStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	repo, err := store.NewDuckDBRepository(cfg.Store.Path, logging.GetLogger())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to open cache store")
	}

	if err := repo.Initialize(ctx); err != nil {
		repo.Close()
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to initialize cache store")
	}

	return repo, nil
}

// newApplication wires the full question-answering stack. The returned
// cleanup must be called once the command finishes.
func newApplication(ctx context.Context, cfg *config.Config) (*application, func(), error) {
	logger := logging.GetLogger()

	if cfg.Source.DSN == "" {
		return nil, nil, errors.New(errors.ErrTypeConfig, "no database connection configured").
			WithSuggestion("Set ASKDB_SOURCE_DSN or pass --dsn")
	}

	repo, err := newStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	pool, err := newSourcePool(ctx, cfg)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		repo.Close()
	}

	queryTimeout, _ := time.ParseDuration(cfg.Source.QueryTimeout)
	llmTimeout, _ := time.ParseDuration(cfg.LLM.Timeout)

	extractor := schema.NewPostgresExtractorFromPool(pool, cfg.Source.Schema)
	schemaCache := schema.NewFingerprintCache(extractor, cfg.Store.SnapshotPath, logger)

	executor := sqlexec.NewPostgresExecutorFromPool(pool, queryTimeout, cfg.Source.MaxRows)

	embedder, err := embedding.NewManager(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	generator, err := llm.NewClient(llm.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Timeout:   llmTimeout,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	index := semcache.NewIndex(repo, embedder, cfg.Cache.SimilarityThreshold, logger)
	controller := retry.NewController(generator, executor, cfg.Retry.MaxAttempts, logger)
	hintManager := hints.NewManager(repo)

	app := &application{
		cfg:    cfg,
		repo:   repo,
		engine: engine.New(schemaCache, index, controller, executor,
			hintManager, cfg.Cache.Disabled, logger),
		hints: hintManager,
	}

	return app, cleanup, nil
}

// newSourcePool connects to the target database
func newSourcePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Source.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConnection, "invalid connection string")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.NewConnectionError(err, poolConfig.ConnConfig.Host)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewConnectionError(err, poolConfig.ConnConfig.Host)
	}

	return pool, nil
}
