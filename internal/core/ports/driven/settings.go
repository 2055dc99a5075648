package driven

import "github.com/recall-labs/recall-cli/internal/core/domain"

// SettingsStore provides read access to backend configuration with
// environment-variable fallback, and persists updates.
type SettingsStore interface {
	// Generation returns the effective generation settings: saved values
	// where present, environment/default fallbacks otherwise.
	Generation() domain.GenerationSettings

	// Embedding returns the effective embedding settings.
	Embedding() domain.EmbeddingSettings

	// SaveGeneration merges the non-empty fields into the stored settings
	// and persists them. The in-memory cache is invalidated synchronously
	// by this write path, never by timestamp comparison.
	SaveGeneration(s domain.GenerationSettings) error
}

// BackendFactory builds embedding and generation clients from the current
// settings. Construction happens at call time so configuration changes
// apply to the next request without a restart.
type BackendFactory interface {
	// Embedder returns an embedding client for the configured service.
	Embedder() (EmbeddingService, error)

	// LLM returns a generation client for the configured backend.
	LLM() (LLMService, error)
}
