package driven

import (
	"context"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// VectorStore persists chunks with their embeddings and serves
// exhaustive cosine-similarity search. At most one row exists per
// (source, contact, start_time) dedup key.
type VectorStore interface {
	// Upsert inserts the chunk or, when a row with the same dedup key
	// exists, updates its text, embedding, metadata, message count and
	// end time in place. Returns the row identifier. Safe to call
	// repeatedly with the same key.
	Upsert(ctx context.Context, chunk domain.Chunk, embedding []float32) (int64, error)

	// Search returns the topK most similar chunks by cosine similarity.
	// topK is clamped to [1, 50]. An empty source means all sources.
	// Rows and queries with zero-norm vectors are excluded.
	Search(ctx context.Context, query []float32, topK int, source domain.Source) ([]domain.ScoredChunk, error)

	// FetchByIDs returns the matching rows with Similarity set to 0,
	// marking them as not coming from a ranked search.
	FetchByIDs(ctx context.Context, ids []int64) ([]domain.ScoredChunk, error)

	// Stats returns chunk counts and on-disk size. A store that has never
	// been created yields zero values, not an error.
	Stats(ctx context.Context) (*domain.StoreStats, error)
}
