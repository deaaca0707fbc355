package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/errors"
)

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing model",
			config:  Config{Provider: ProviderOpenAI, APIKey: "key"},
			wantErr: "model is required",
		},
		{
			name:    "openai without key",
			config:  Config{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
			wantErr: "API key is required",
		},
		{
			name:    "anthropic without key",
			config:  Config{Provider: ProviderAnthropic, Model: "claude-sonnet-4-5"},
			wantErr: "API key is required",
		},
		{
			name:    "unknown provider",
			config:  Config{Provider: "mystery", Model: "m"},
			wantErr: "unsupported LLM provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{Provider: ProviderOllama, Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", client.config.BaseURL)
	assert.Equal(t, 1000, client.config.MaxTokens)
}

func TestGenerateSQLOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "how many users are there")
		assert.Contains(t, req.Messages[1].Content, "TABLE users")

		resp := openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: "SELECT COUNT(*) FROM users"}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	resp, err := client.GenerateSQL(context.Background(), Request{
		Question:      "how many users are there",
		SchemaContext: "TABLE users\n  id integer NOT NULL",
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM users", resp.SQL)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
}

func TestGenerateSQLStripsMarkdownFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{
					Content: "```sql\nSELECT id FROM users;\n```",
				}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	resp, err := client.GenerateSQL(context.Background(), Request{Question: "list ids"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users", resp.SQL)
}

func TestGenerateSQLRetryPromptIncludesError(t *testing.T) {
	var captured string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		captured = req.Messages[1].Content

		resp := openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{Content: "SELECT email FROM users"}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	_, err = client.GenerateSQL(context.Background(), Request{
		Question:   "list user emails",
		PriorSQL:   "SELECT mail FROM users",
		PriorError: `column "mail" does not exist`,
	})
	require.NoError(t, err)

	assert.Contains(t, captured, "SELECT mail FROM users")
	assert.Contains(t, captured, `column "mail" does not exist`)
	assert.Contains(t, captured, "corrected statement")
}

func TestGenerateSQLAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	_, err = client.GenerateSQL(context.Background(), Request{Question: "anything"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeGeneration))
}

func TestGenerateSQLEmptyStatement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			Choices: []openAIChoice{{Message: openAIMessage{Content: "```\n```"}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	_, err = client.GenerateSQL(context.Background(), Request{Question: "anything"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeGeneration))
}

func TestGenerateSQLOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		resp := ollamaResponse{Response: "SELECT 1", Done: true}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOllama,
		Model:    "llama3",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	resp, err := client.GenerateSQL(context.Background(), Request{Question: "smoke"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", resp.SQL)
}

func TestBuildPromptIncludesHints(t *testing.T) {
	prompt := buildPrompt(Request{
		Question:      "revenue by region",
		SchemaContext: "TABLE orders",
		Hints:         []string{"Amounts are stored in cents", "Use the regions view"},
	})

	assert.Contains(t, prompt, "Amounts are stored in cents")
	assert.Contains(t, prompt, "Use the regions view")
	assert.Contains(t, prompt, "revenue by region")
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1", "SELECT 1"},
		{"trailing semicolon", "SELECT 1;", "SELECT 1"},
		{"fenced", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"fenced no lang", "```\nSELECT 1\n```", "SELECT 1"},
		{"whitespace", "  SELECT 1  \n", "SELECT 1"},
		{"multiline", "```sql\nSELECT a,\n  b\nFROM t\n```", "SELECT a,\n  b\nFROM t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSQL(tt.in))
		})
	}
}
