package domain

// Backend identifies a generation provider kind.
type Backend string

const (
	// BackendOllama is a local single-host inference service.
	BackendOllama Backend = "ollama"

	// BackendOpenAI is a remote OpenAI-compatible service.
	BackendOpenAI Backend = "openai"
)

// Valid reports whether the backend kind is known.
func (b Backend) Valid() bool {
	return b == BackendOllama || b == BackendOpenAI
}

// GenerationSettings selects and configures the generation backend.
// Values are read at call time, not cached for the lifetime of a job,
// so a settings change takes effect on the next request.
type GenerationSettings struct {
	// Backend is the provider kind. Defaults to ollama.
	Backend Backend `toml:"generation_backend"`

	// Model is the generation model name.
	Model string `toml:"generation_model"`

	// APIURL is the backend base URL: the OpenAI-compatible endpoint,
	// or a non-default Ollama host. Empty means the provider default.
	APIURL string `toml:"generation_api_url"`

	// APIKey is the bearer token for the remote backend. Ignored for ollama.
	APIKey string `toml:"generation_api_key"`
}

// EmbeddingSettings configures the local embedding service.
type EmbeddingSettings struct {
	// BaseURL is the inference service base URL.
	BaseURL string `toml:"embed_base_url"`

	// Model is the embedding model name.
	Model string `toml:"embed_model"`
}
