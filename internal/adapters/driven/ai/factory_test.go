package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// stubSettings returns fixed settings without touching disk.
type stubSettings struct {
	generation domain.GenerationSettings
	embedding  domain.EmbeddingSettings
}

func (s *stubSettings) Generation() domain.GenerationSettings          { return s.generation }
func (s *stubSettings) Embedding() domain.EmbeddingSettings            { return s.embedding }
func (s *stubSettings) SaveGeneration(domain.GenerationSettings) error { return nil }

func TestLLMOllamaUsesConfiguredHost(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"response": "ok", "done": true})
	}))
	defer server.Close()

	factory := NewFactory(&stubSettings{generation: domain.GenerationSettings{
		Backend: domain.BackendOllama,
		APIURL:  server.URL,
	}})

	llm, err := factory.LLM()
	require.NoError(t, err)
	defer llm.Close()

	out, err := llm.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "/api/generate", gotPath)
}

func TestLLMOpenAIUsesConfiguredHost(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "hi"}}},
		})
	}))
	defer server.Close()

	factory := NewFactory(&stubSettings{generation: domain.GenerationSettings{
		Backend: domain.BackendOpenAI,
		APIURL:  server.URL,
		APIKey:  "sk-test",
	}})

	llm, err := factory.LLM()
	require.NoError(t, err)
	defer llm.Close()

	out, err := llm.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestLLMEmptyBackendDefaultsToOllama(t *testing.T) {
	factory := NewFactory(&stubSettings{})

	llm, err := factory.LLM()
	require.NoError(t, err)
	require.NotNil(t, llm)
	llm.Close()
}

func TestLLMUnsupportedBackend(t *testing.T) {
	factory := NewFactory(&stubSettings{generation: domain.GenerationSettings{
		Backend: "gemini",
	}})

	_, err := factory.LLM()
	assert.ErrorContains(t, err, "unsupported generation backend")
}
