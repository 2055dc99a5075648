package services

import (
	"context"
	"sync"
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
)

// mockChatExtractor streams a fixed message slice. If release is
// non-nil, extraction blocks until it is closed.
type mockChatExtractor struct {
	messages []domain.RawMessage
	err      error
	release  chan struct{}
}

func (m *mockChatExtractor) Extract(ctx context.Context, since *time.Time) (<-chan domain.RawMessage, <-chan error) {
	out := make(chan domain.RawMessage)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		if m.release != nil {
			select {
			case <-m.release:
			case <-ctx.Done():
				return
			}
		}
		for _, msg := range m.messages {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
		if m.err != nil {
			errs <- m.err
		}
	}()
	return out, errs
}

// mockMailExtractor streams a fixed email slice.
type mockMailExtractor struct {
	emails []domain.RawEmail
	err    error
}

func (m *mockMailExtractor) Extract(ctx context.Context, since *time.Time) (<-chan domain.RawEmail, <-chan error) {
	out := make(chan domain.RawEmail)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, em := range m.emails {
			select {
			case out <- em:
			case <-ctx.Done():
				return
			}
		}
		if m.err != nil {
			errs <- m.err
		}
	}()
	return out, errs
}

// mockEmbedder returns a fixed vector, with an optional per-text error.
type mockEmbedder struct {
	mu        sync.Mutex
	vector    []float32
	failOn    string
	err       error
	lastTexts []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.lastTexts = append(m.lastTexts, text)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.failOn != "" && text == m.failOn {
		return nil, context.DeadlineExceeded
	}
	if m.vector != nil {
		return m.vector, nil
	}
	return []float32{1, 0}, nil
}

func (m *mockEmbedder) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lastTexts...)
}

func (m *mockEmbedder) Dimensions() int                { return 2 }
func (m *mockEmbedder) ModelName() string              { return "mock-embed" }
func (m *mockEmbedder) Ping(ctx context.Context) error { return nil }
func (m *mockEmbedder) Close() error                   { return nil }

// mockLLM serves canned one-shot and streamed responses and records the
// inputs it saw.
type mockLLM struct {
	mu              sync.Mutex
	generateResult  string
	generateErr     error
	streamTokens    []string
	streamErr       error
	generatePrompts []string
	lastMessages    []domain.ChatTurn
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.generatePrompts = append(m.generatePrompts, prompt)
	m.mu.Unlock()
	return m.generateResult, m.generateErr
}

func (m *mockLLM) Chat(ctx context.Context, messages []domain.ChatTurn) (string, error) {
	return m.generateResult, m.generateErr
}

func (m *mockLLM) stream(ctx context.Context) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(tokens)
		defer close(errs)
		for _, token := range m.streamTokens {
			select {
			case tokens <- token:
			case <-ctx.Done():
				return
			}
		}
		if m.streamErr != nil {
			errs <- m.streamErr
		}
	}()
	return tokens, errs
}

func (m *mockLLM) StreamGenerate(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	m.mu.Lock()
	m.generatePrompts = append(m.generatePrompts, prompt)
	m.mu.Unlock()
	return m.stream(ctx)
}

func (m *mockLLM) StreamChat(ctx context.Context, messages []domain.ChatTurn) (<-chan string, <-chan error) {
	m.mu.Lock()
	m.lastMessages = append([]domain.ChatTurn(nil), messages...)
	m.mu.Unlock()
	return m.stream(ctx)
}

func (m *mockLLM) prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.generatePrompts...)
}

func (m *mockLLM) chatMessages() []domain.ChatTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChatTurn(nil), m.lastMessages...)
}

func (m *mockLLM) ModelName() string              { return "mock-llm" }
func (m *mockLLM) Ping(ctx context.Context) error { return nil }
func (m *mockLLM) Close() error                   { return nil }

// mockStore is an in-memory vector store.
type mockStore struct {
	mu        sync.Mutex
	chunks    []domain.Chunk
	searchRes []domain.ScoredChunk
	fetchRes  []domain.ScoredChunk
	upsertErr error
	searchErr error

	lastTopK   int
	lastSource domain.Source
}

func (m *mockStore) Upsert(ctx context.Context, chunk domain.Chunk, embedding []float32) (int64, error) {
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunk)
	return int64(len(m.chunks)), nil
}

func (m *mockStore) Search(ctx context.Context, query []float32, topK int, source domain.Source) ([]domain.ScoredChunk, error) {
	m.mu.Lock()
	m.lastTopK = topK
	m.lastSource = source
	m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchRes, nil
}

func (m *mockStore) FetchByIDs(ctx context.Context, ids []int64) ([]domain.ScoredChunk, error) {
	return m.fetchRes, nil
}

func (m *mockStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.StoreStats{TotalChunks: len(m.chunks), BySource: map[domain.Source]int{}}, nil
}

func (m *mockStore) stored() []domain.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Chunk(nil), m.chunks...)
}

// mockFactory hands out fixed mock clients.
type mockFactory struct {
	embedder    *mockEmbedder
	llm         *mockLLM
	embedderErr error
	llmErr      error
}

func (m *mockFactory) Embedder() (driven.EmbeddingService, error) {
	if m.embedderErr != nil {
		return nil, m.embedderErr
	}
	return m.embedder, nil
}

func (m *mockFactory) LLM() (driven.LLMService, error) {
	if m.llmErr != nil {
		return nil, m.llmErr
	}
	return m.llm, nil
}
