package driven

import (
	"context"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// LLMService is the generation backend capability set. Exactly one
// implementation is selected per request from the configured settings;
// the selection never depends on the source-record type.
type LLMService interface {
	// Generate produces a complete text completion from a prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// StreamGenerate produces a completion as a token stream. Tokens are
	// delivered in backend order on the first channel; the second channel
	// receives at most one error. Both are closed when the stream ends.
	StreamGenerate(ctx context.Context, prompt string) (<-chan string, <-chan error)

	// Chat produces a complete response to a multi-turn conversation.
	Chat(ctx context.Context, messages []domain.ChatTurn) (string, error)

	// StreamChat produces a chat response as a token stream, with the same
	// channel contract as StreamGenerate.
	StreamChat(ctx context.Context, messages []domain.ChatTurn) (<-chan string, <-chan error)

	// ModelName returns the name of the generation model being used.
	ModelName() string

	// Ping validates the service is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
