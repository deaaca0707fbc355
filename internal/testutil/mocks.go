// Package testutil provides shared fakes for unit tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/sqlexec"
	"github.com/askdb/askdb/internal/store"
)

// MockGenerator returns scripted SQL responses in order
type MockGenerator struct {
	mu        sync.Mutex
	responses []GeneratorResponse
	calls     []llm.Request
}

// GeneratorResponse is a single scripted generator result
type GeneratorResponse struct {
	SQL string
	Err error
}

// MockGeneratorOption configures a MockGenerator
type MockGeneratorOption func(*MockGenerator)

// WithGeneratorResponses sets the scripted responses, consumed in order.
// The last response repeats once the script runs out.
func WithGeneratorResponses(responses ...GeneratorResponse) MockGeneratorOption {
	return func(m *MockGenerator) {
		m.responses = responses
	}
}

// NewMockGenerator creates a mock SQL generator
func NewMockGenerator(opts ...MockGeneratorOption) *MockGenerator {
	m := &MockGenerator{
		responses: []GeneratorResponse{{SQL: "SELECT 1"}},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// GenerateSQL returns the next scripted response
func (m *MockGenerator) GenerateSQL(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}

	resp := m.responses[idx]
	if resp.Err != nil {
		return nil, resp.Err
	}

	return &llm.Response{SQL: resp.SQL}, nil
}

// CallCount returns how many times GenerateSQL was invoked
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}

// Calls returns a copy of all recorded requests
func (m *MockGenerator) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]llm.Request, len(m.calls))
	copy(out, m.calls)

	return out
}

// MockExecutor returns scripted execution and validation results
type MockExecutor struct {
	mu           sync.Mutex
	executeErrs  map[string]error
	validateErrs map[string]error
	result       *sqlexec.Result
	executed     []string
	validated    []string
}

// MockExecutorOption configures a MockExecutor
type MockExecutorOption func(*MockExecutor)

// WithExecuteError makes Execute fail for the given statement
func WithExecuteError(statement string, err error) MockExecutorOption {
	return func(m *MockExecutor) {
		m.executeErrs[statement] = err
	}
}

// WithValidateError makes Validate fail for the given statement
func WithValidateError(statement string, err error) MockExecutorOption {
	return func(m *MockExecutor) {
		m.validateErrs[statement] = err
	}
}

// WithResult sets the result returned by successful Execute calls
func WithResult(result *sqlexec.Result) MockExecutorOption {
	return func(m *MockExecutor) {
		m.result = result
	}
}

// NewMockExecutor creates a mock SQL executor
func NewMockExecutor(opts ...MockExecutorOption) *MockExecutor {
	m := &MockExecutor{
		executeErrs:  make(map[string]error),
		validateErrs: make(map[string]error),
		result: &sqlexec.Result{
			Columns: []string{"value"},
			Rows:    [][]interface{}{{int64(1)}},
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Execute returns the scripted result or error for the statement
func (m *MockExecutor) Execute(_ context.Context, statement string) (*sqlexec.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executed = append(m.executed, statement)

	if err, ok := m.executeErrs[statement]; ok {
		return nil, err
	}

	return m.result, nil
}

// Validate returns the scripted validation error for the statement
func (m *MockExecutor) Validate(_ context.Context, statement string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.validated = append(m.validated, statement)

	return m.validateErrs[statement]
}

// Executed returns all statements passed to Execute
func (m *MockExecutor) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.executed))
	copy(out, m.executed)

	return out
}

// Validated returns all statements passed to Validate
func (m *MockExecutor) Validated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.validated))
	copy(out, m.validated)

	return out
}

// MockExtractor returns a fixed schema description and counts calls
type MockExtractor struct {
	mu          sync.Mutex
	description *schema.Description
	err         error
	calls       int
}

// MockExtractorOption configures a MockExtractor
type MockExtractorOption func(*MockExtractor)

// WithDescription sets the description Extract returns
func WithDescription(desc *schema.Description) MockExtractorOption {
	return func(m *MockExtractor) {
		m.description = desc
	}
}

// WithExtractError makes Extract fail
func WithExtractError(err error) MockExtractorOption {
	return func(m *MockExtractor) {
		m.err = err
	}
}

// NewMockExtractor creates a mock schema extractor
func NewMockExtractor(opts ...MockExtractorOption) *MockExtractor {
	m := &MockExtractor{
		description: &schema.Description{
			Tables: []schema.Table{
				{
					Name: "users",
					Columns: []schema.Column{
						{Name: "id", Type: "integer"},
						{Name: "email", Type: "text", Nullable: true},
					},
				},
			},
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Extract returns the configured description
func (m *MockExtractor) Extract(_ context.Context) (*schema.Description, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	return m.description, nil
}

// SetDescription swaps the description returned by later Extract calls
func (m *MockExtractor) SetDescription(desc *schema.Description) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.description = desc
}

// CallCount returns how many times Extract was invoked
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// FixedEmbedder returns preset vectors keyed by exact text, so tests can
// control similarity outcomes precisely
type FixedEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
}

// NewFixedEmbedder creates a fixed embedder with the given text-to-vector map
func NewFixedEmbedder(vectors map[string][]float32) *FixedEmbedder {
	return &FixedEmbedder{
		vectors:  vectors,
		fallback: []float32{0, 0, 1},
	}
}

// Embed returns the preset vector for the text, or an orthogonal fallback
func (e *FixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}

	return e.fallback, nil
}

// MemoryRepository is an in-memory store.Repository for tests
type MemoryRepository struct {
	mu      sync.RWMutex
	queries map[string]store.CachedQuery
	hints   map[string]store.Hint

	// ListErr, when set, makes ListQueriesByFingerprint fail to simulate
	// a corrupt backing store
	ListErr error
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		queries: make(map[string]store.CachedQuery),
		hints:   make(map[string]store.Hint),
	}
}

// Initialize is a no-op for the in-memory repository
func (r *MemoryRepository) Initialize(_ context.Context) error { return nil }

// InsertQuery stores a cache entry
func (r *MemoryRepository) InsertQuery(_ context.Context, entry store.CachedQuery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.queries[entry.ID]; exists {
		return fmt.Errorf("duplicate cache entry id %s", entry.ID)
	}

	r.queries[entry.ID] = entry

	return nil
}

// ListQueriesByFingerprint returns matching entries oldest first
func (r *MemoryRepository) ListQueriesByFingerprint(
	_ context.Context,
	fingerprint string,
) ([]store.CachedQuery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.ListErr != nil {
		return nil, r.ListErr
	}

	var entries []store.CachedQuery

	for _, entry := range r.queries {
		if entry.Fingerprint == fingerprint {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}

// DeleteQuery removes a single entry
func (r *MemoryRepository) DeleteQuery(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.queries, id)

	return nil
}

// DeleteQueriesByFingerprint removes all entries under the fingerprint
func (r *MemoryRepository) DeleteQueriesByFingerprint(
	_ context.Context,
	fingerprint string,
) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64

	for id, entry := range r.queries {
		if entry.Fingerprint == fingerprint {
			delete(r.queries, id)
			n++
		}
	}

	return n, nil
}

// Clear removes all cache entries
func (r *MemoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queries = make(map[string]store.CachedQuery)

	return nil
}

// ListHints returns hints filtered by category and enablement
func (r *MemoryRepository) ListHints(
	_ context.Context,
	category string,
	enabledOnly bool,
) ([]store.Hint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hints []store.Hint

	for _, h := range r.hints {
		if category != "" && h.Category != category {
			continue
		}

		if enabledOnly && !h.Enabled {
			continue
		}

		hints = append(hints, h)
	}

	sort.Slice(hints, func(i, j int) bool {
		return hints[i].CreatedAt.Before(hints[j].CreatedAt)
	})

	return hints, nil
}

// InsertHint stores a hint
func (r *MemoryRepository) InsertHint(_ context.Context, hint store.Hint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hints[hint.ID] = hint

	return nil
}

// SetHintEnabled toggles a hint
func (r *MemoryRepository) SetHintEnabled(_ context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hints[id]
	if !ok {
		return fmt.Errorf("hint %s not found", id)
	}

	h.Enabled = enabled
	r.hints[id] = h

	return nil
}

// DeleteHint removes a hint
func (r *MemoryRepository) DeleteHint(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.hints, id)

	return nil
}

// GetStats returns entry counts
func (r *MemoryRepository) GetStats(_ context.Context) (*store.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fingerprints := make(map[string]bool)
	for _, entry := range r.queries {
		fingerprints[entry.Fingerprint] = true
	}

	return &store.Stats{
		CachedQueries: int64(len(r.queries)),
		Fingerprints:  int64(len(fingerprints)),
		Hints:         int64(len(r.hints)),
	}, nil
}

// QueryCount returns the number of stored cache entries
func (r *MemoryRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.queries)
}

// Close is a no-op for the in-memory repository
func (r *MemoryRepository) Close() error { return nil }
