package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
	"github.com/recall-labs/recall-cli/internal/core/ports/driving"
	"github.com/recall-labs/recall-cli/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// Redaction and reformulation limits.
const (
	// previewLength caps the chunk text sent to clients in sources events.
	previewLength = 300

	// reformulateExchanges is how many recent exchanges (user+assistant
	// pairs) inform query reformulation.
	reformulateExchanges = 3

	// reformulateTurnLength caps each history turn inside the
	// reformulation prompt.
	reformulateTurnLength = 200

	// historyReplayTurns is how many trailing history turns are replayed
	// to the generation backend in chat mode.
	historyReplayTurns = 8
)

// answerPrompt frames retrieved chunks for single-question answering.
const answerPrompt = `You are a helpful assistant answering questions about the user's personal message and email history.

Use only the context below. If the context does not contain the answer, say so plainly instead of guessing. Mention dates and people when the context provides them.

Context:
%s

Question: %s

Answer:`

// reformulatePrompt turns a follow-up message into a standalone query.
const reformulatePrompt = `Given this conversation, rewrite the final user message as a standalone search query. Resolve pronouns and references from the conversation. Return ONLY the rewritten query, nothing else.

%s
User: %s

Standalone query:`

// QueryService answers questions over the ingested archives by embedding
// the query, searching the vector store and feeding the best chunks to
// the configured generation backend.
type QueryService struct {
	store    driven.VectorStore
	backends driven.BackendFactory
}

// NewQueryService creates the query service.
func NewQueryService(store driven.VectorStore, backends driven.BackendFactory) *QueryService {
	return &QueryService{store: store, backends: backends}
}

// Retrieve embeds the query and returns the topK most similar chunks.
func (s *QueryService) Retrieve(ctx context.Context, query string, topK int, source domain.Source) ([]domain.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if source != "" && !source.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}

	embedder, err := s.backends.Embedder()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer embedder.Close()

	embedding, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", domain.ErrRetrieval, err)
	}

	chunks, err := s.store.Search(ctx, embedding, topK, source)
	if err != nil {
		return nil, fmt.Errorf("%w: searching store: %v", domain.ErrRetrieval, err)
	}
	return chunks, nil
}

// FetchChunks returns stored chunks by id, unranked.
func (s *QueryService) FetchChunks(ctx context.Context, ids []int64) ([]domain.ScoredChunk, error) {
	return s.store.FetchByIDs(ctx, ids)
}

// StreamAnswer retrieves context for the query and streams an answer.
func (s *QueryService) StreamAnswer(ctx context.Context, query string, topK int, source domain.Source) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)

	go func() {
		defer close(events)

		chunks, ok := s.retrieveForStream(ctx, events, query, topK, source)
		if !ok {
			return
		}

		llm, err := s.backends.LLM()
		if err != nil {
			emit(ctx, events, errorEvent(fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)))
			return
		}
		defer llm.Close()

		prompt := fmt.Sprintf(answerPrompt, contextBlock(chunks), strings.TrimSpace(query))
		tokens, errs := llm.StreamGenerate(ctx, prompt)
		s.relay(ctx, events, tokens, errs)
	}()

	return events
}

// StreamAnswerChat is the multi-turn variant. The latest user message is
// reformulated against the history into a standalone search query before
// retrieval; generation sees the replayed history plus the augmented
// final message.
func (s *QueryService) StreamAnswerChat(ctx context.Context, userMsg string, history []domain.ChatTurn, topK int, source domain.Source) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)

	go func() {
		defer close(events)

		searchQuery := s.reformulate(ctx, userMsg, history)

		chunks, ok := s.retrieveForStream(ctx, events, searchQuery, topK, source)
		if !ok {
			return
		}

		llm, err := s.backends.LLM()
		if err != nil {
			emit(ctx, events, errorEvent(fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)))
			return
		}
		defer llm.Close()

		messages := replayHistory(history)
		messages = append(messages, domain.ChatTurn{
			Role:    "user",
			Content: fmt.Sprintf(answerPrompt, contextBlock(chunks), strings.TrimSpace(userMsg)),
		})

		tokens, errs := llm.StreamChat(ctx, messages)
		s.relay(ctx, events, tokens, errs)
	}()

	return events
}

// retrieveForStream runs retrieval and emits the sources event. On any
// failure, or when nothing matches, it emits the terminating events and
// reports false.
func (s *QueryService) retrieveForStream(ctx context.Context, events chan<- domain.StreamEvent, query string, topK int, source domain.Source) ([]domain.ScoredChunk, bool) {
	chunks, err := s.Retrieve(ctx, query, topK, source)
	if err != nil {
		emit(ctx, events, errorEvent(err))
		return nil, false
	}

	// Sources always precede any other event, even when empty.
	if !emit(ctx, events, domain.StreamEvent{Type: domain.EventSources, Data: redact(chunks)}) {
		return nil, false
	}
	if len(chunks) == 0 {
		emit(ctx, events, errorEvent(domain.ErrNoResults))
		return nil, false
	}
	return chunks, true
}

// relay forwards backend tokens as token events and closes the stream
// with done, or with error as the last event on failure.
func (s *QueryService) relay(ctx context.Context, events chan<- domain.StreamEvent, tokens <-chan string, errs <-chan error) {
	for token := range tokens {
		if !emit(ctx, events, domain.StreamEvent{Type: domain.EventToken, Data: token}) {
			return
		}
	}
	if err := <-errs; err != nil {
		emit(ctx, events, errorEvent(fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)))
		return
	}
	emit(ctx, events, domain.StreamEvent{Type: domain.EventDone, Data: ""})
}

// reformulate rewrites a follow-up message into a standalone query using
// recent history. Best effort: with no history, or on any backend
// failure or empty rewrite, the original message is used unchanged.
func (s *QueryService) reformulate(ctx context.Context, userMsg string, history []domain.ChatTurn) string {
	if len(history) == 0 {
		return userMsg
	}

	llm, err := s.backends.LLM()
	if err != nil {
		return userMsg
	}
	defer llm.Close()

	recent := history
	if max := reformulateExchanges * 2; len(recent) > max {
		recent = recent[len(recent)-max:]
	}

	var sb strings.Builder
	for _, turn := range recent {
		content := truncate(turn.Content, reformulateTurnLength)
		role := "User"
		if turn.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, content)
	}

	rewritten, err := llm.Generate(ctx, fmt.Sprintf(reformulatePrompt, strings.TrimRight(sb.String(), "\n"), userMsg))
	if err != nil {
		logger.Debug("query reformulation failed, using original: %v", err)
		return userMsg
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return userMsg
	}
	logger.Debug("reformulated query: %q -> %q", userMsg, rewritten)
	return rewritten
}

// replayHistory returns the trailing turns sent back to the backend.
func replayHistory(history []domain.ChatTurn) []domain.ChatTurn {
	if len(history) > historyReplayTurns {
		history = history[len(history)-historyReplayTurns:]
	}
	out := make([]domain.ChatTurn, len(history))
	copy(out, history)
	return out
}

// contextBlock renders retrieved chunks as the prompt context section.
func contextBlock(chunks []domain.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("[Chunk %d | %s | %s | %s – %s | %d messages | similarity: %.3f]\n%s",
			i+1, chunk.Source, chunk.Contact,
			chunk.StartTime.Format("2006-01-02 15:04"),
			chunk.EndTime.Format("2006-01-02 15:04"),
			chunk.MessageCount, chunk.Similarity, chunk.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// redact converts chunks to client-safe previews: truncated text,
// rounded similarity, no embeddings. Never nil, so the sources event
// serialises as an empty list rather than null.
func redact(chunks []domain.ScoredChunk) []domain.SourcePreview {
	previews := make([]domain.SourcePreview, len(chunks))
	for i, chunk := range chunks {
		previews[i] = domain.SourcePreview{
			ID:           chunk.ID,
			Source:       chunk.Source,
			Contact:      chunk.Contact,
			StartTime:    chunk.StartTime.Unix(),
			EndTime:      chunk.EndTime.Unix(),
			MessageCount: chunk.MessageCount,
			Similarity:   math.Round(chunk.Similarity*1000) / 1000,
			Text:         truncate(chunk.Text, previewLength),
		}
	}
	return previews
}

// truncate cuts s to at most limit bytes, backing up so a multibyte
// rune is never split mid-sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// emit sends one event unless the consumer is gone.
func emit(ctx context.Context, events chan<- domain.StreamEvent, event domain.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// errorEvent wraps an error as the terminal stream event.
func errorEvent(err error) domain.StreamEvent {
	return domain.StreamEvent{Type: domain.EventError, Data: err.Error()}
}
