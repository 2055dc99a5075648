package driving

import (
	"context"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// QueryService answers questions over the ingested archives.
type QueryService interface {
	// Retrieve embeds the query and returns the topK most similar chunks,
	// optionally restricted to one source (empty means all).
	Retrieve(ctx context.Context, query string, topK int, source domain.Source) ([]domain.ScoredChunk, error)

	// StreamAnswer retrieves context for the query and streams an answer.
	// The returned channel delivers a strictly ordered, finite event
	// sequence — sources first, then tokens, then done — terminating at
	// the first error. The channel is closed when the stream ends.
	StreamAnswer(ctx context.Context, query string, topK int, source domain.Source) <-chan domain.StreamEvent

	// StreamAnswerChat is the multi-turn variant: the latest user message
	// is reformulated against the history into a standalone search query
	// before retrieval, and the history is replayed to the backend.
	StreamAnswerChat(ctx context.Context, userMsg string, history []domain.ChatTurn, topK int, source domain.Source) <-chan domain.StreamEvent

	// FetchChunks returns stored chunks by id, unranked.
	FetchChunks(ctx context.Context, ids []int64) ([]domain.ScoredChunk, error)
}
