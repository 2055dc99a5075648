// Package ai builds embedding and generation clients from the current
// settings. Clients are constructed per call, so a settings change takes
// effect on the next request without restarting the process.
package ai

import (
	"fmt"

	ollamaembed "github.com/recall-labs/recall-cli/internal/adapters/driven/embedding/ollama"
	ollamallm "github.com/recall-labs/recall-cli/internal/adapters/driven/llm/ollama"
	openaillm "github.com/recall-labs/recall-cli/internal/adapters/driven/llm/openai"
	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.BackendFactory = (*Factory)(nil)

// Factory creates AI service clients from a settings store.
type Factory struct {
	settings driven.SettingsStore
}

// NewFactory creates a factory reading configuration from store.
func NewFactory(store driven.SettingsStore) *Factory {
	return &Factory{settings: store}
}

// Embedder returns an embedding client for the configured service.
func (f *Factory) Embedder() (driven.EmbeddingService, error) {
	cfg := f.settings.Embedding()
	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}), nil
}

// LLM returns a generation client for the configured backend.
// An empty backend defaults to ollama.
func (f *Factory) LLM() (driven.LLMService, error) {
	cfg := f.settings.Generation()

	backend := cfg.Backend
	if backend == "" {
		backend = domain.BackendOllama
	}

	switch backend {
	case domain.BackendOllama:
		return ollamallm.NewLLMService(ollamallm.Config{
			BaseURL: cfg.APIURL,
			Model:   cfg.Model,
		}), nil

	case domain.BackendOpenAI:
		return openaillm.NewLLMService(openaillm.Config{
			BaseURL: cfg.APIURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported generation backend: %s", backend)
	}
}
