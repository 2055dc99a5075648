package driven

import "context"

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	// Implementations retry transient server failures a bounded number of
	// times before giving up.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
