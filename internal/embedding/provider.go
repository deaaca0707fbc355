package embedding

import (
	"context"
	"fmt"

	"github.com/askdb/askdb/internal/logging"
)

// Provider defines the interface for embedding providers
type Provider interface {
	// Embed generates a fixed-dimension embedding for the given text
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of embeddings produced by this provider
	Dimensions() int

	// Name returns the provider name for identification
	Name() string
}

// Config represents embedding provider configuration
type Config struct {
	Provider   string // "local" or "remote"
	Model      string
	Dimensions int
	APIKey     string
	BaseURL    string
}

// DefaultConfig returns default embedding configuration
func DefaultConfig() Config {
	return Config{
		Provider:   "local",
		Model:      "text-embedding-3-small",
		Dimensions: 384,
	}
}

// Manager selects the configured provider and falls back to the local one
// when a remote call fails. Questions embedded by different providers live
// in different vector spaces, so a fallback embedding simply behaves like
// a cache miss rather than returning a wrong entry.
type Manager struct {
	primary  Provider
	fallback *LocalProvider
	logger   *logging.Logger
}

// NewManager creates a new embedding manager
func NewManager(config Config, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}

	local := NewLocalProvider(config.Dimensions)

	var primary Provider

	switch config.Provider {
	case "local", "":
		primary = local
	case "remote":
		remote, err := NewRemoteProvider(config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize remote embedding provider: %w", err)
		}

		primary = remote
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Provider)
	}

	if primary.Dimensions() != config.Dimensions {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d",
			config.Dimensions, primary.Dimensions())
	}

	return &Manager{
		primary:  primary,
		fallback: local,
		logger:   logger,
	}, nil
}

// Embed generates an embedding using the configured provider
func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := m.primary.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}

	if _, isLocal := m.primary.(*LocalProvider); isLocal {
		return nil, err
	}

	m.logger.Warnf("embedding provider %s failed, using local fallback: %v", m.primary.Name(), err)

	return m.fallback.Embed(ctx, text)
}

// Dimensions returns the embedding dimensions
func (m *Manager) Dimensions() int {
	return m.primary.Dimensions()
}

// Name returns the active provider name
func (m *Manager) Name() string {
	return m.primary.Name()
}
