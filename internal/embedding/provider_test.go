package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	provider := NewLocalProvider(384)
	ctx := context.Background()

	first, err := provider.Embed(ctx, "How many users signed up last week?")
	require.NoError(t, err)

	second, err := provider.Embed(ctx, "How many users signed up last week?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 384)
}

func TestLocalProviderUnitNorm(t *testing.T) {
	provider := NewLocalProvider(128)

	vec, err := provider.Embed(context.Background(), "total revenue by month")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalProviderEmptyText(t *testing.T) {
	provider := NewLocalProvider(64)

	vec, err := provider.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 64)

	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestLocalProviderSimilarTextsScoreHigher(t *testing.T) {
	provider := NewLocalProvider(384)
	ctx := context.Background()

	base, err := provider.Embed(ctx, "how many orders were placed today")
	require.NoError(t, err)

	similar, err := provider.Embed(ctx, "how many orders were placed yesterday")
	require.NoError(t, err)

	unrelated, err := provider.Embed(ctx, "list the slowest warehouse shipments")
	require.NoError(t, err)

	assert.Greater(t, dot(base, similar), dot(base, unrelated))
}

func TestLocalProviderDefaultDimensions(t *testing.T) {
	provider := NewLocalProvider(0)
	assert.Equal(t, 384, provider.Dimensions())
}

func TestNewManagerUnsupportedProvider(t *testing.T) {
	_, err := NewManager(Config{Provider: "bogus", Dimensions: 384}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported embedding provider")
}

func TestNewManagerDefaultsToLocal(t *testing.T) {
	manager, err := NewManager(Config{Dimensions: 384}, nil)
	require.NoError(t, err)
	assert.Equal(t, "local:feature-hash", manager.Name())
	assert.Equal(t, 384, manager.Dimensions())
}

func TestRemoteProviderRequiresAPIKey(t *testing.T) {
	_, err := NewRemoteProvider(Config{Model: "text-embedding-3-small", Dimensions: 8})
	require.Error(t, err)
}

func TestRemoteProviderEmbed(t *testing.T) {
	want := make([]float64, 8)
	for i := range want {
		want[i] = float64(i) / 10
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello"}, req.Input)

		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": want},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewRemoteProvider(Config{
		Model:      "text-embedding-3-small",
		Dimensions: 8,
		APIKey:     "test-key",
		BaseURL:    server.URL,
	})
	require.NoError(t, err)

	vec, err := provider.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 8)

	for i, v := range vec {
		assert.InDelta(t, want[i], float64(v), 1e-6)
	}
}

func TestRemoteProviderAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	provider, err := NewRemoteProvider(Config{
		Model:      "text-embedding-3-small",
		Dimensions: 8,
		APIKey:     "bad-key",
		BaseURL:    server.URL,
	})
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestRemoteProviderDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2]}]}`))
	}))
	defer server.Close()

	provider, err := NewRemoteProvider(Config{
		Model:      "text-embedding-3-small",
		Dimensions: 8,
		APIKey:     "test-key",
		BaseURL:    server.URL,
	})
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestManagerFallsBackToLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	manager, err := NewManager(Config{
		Provider:   "remote",
		Model:      "text-embedding-3-small",
		Dimensions: 384,
		APIKey:     "test-key",
		BaseURL:    server.URL,
	}, nil)
	require.NoError(t, err)

	vec, err := manager.Embed(context.Background(), "how many users are there")
	require.NoError(t, err)
	assert.Len(t, vec, 384)

	local, err := NewLocalProvider(384).Embed(context.Background(), "how many users are there")
	require.NoError(t, err)
	assert.Equal(t, local, vec)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	if math.IsNaN(sum) {
		return 0
	}

	return sum
}
