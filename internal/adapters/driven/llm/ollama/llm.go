// Package ollama provides a generation service adapter using Ollama.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:11434"
	DefaultModel         = "llama3.2"
	DefaultTimeout       = 30 * time.Second
	DefaultStreamTimeout = 300 * time.Second
)

// maxScanTokenSize bounds a single streamed JSON line.
const maxScanTokenSize = 1024 * 1024

// Config holds configuration for the Ollama LLM service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the generation model to use (default: llama3.2).
	Model string

	// Timeout is the one-shot request timeout (default: 30s).
	Timeout time.Duration

	// StreamTimeout bounds an entire streamed response (default: 300s).
	StreamTimeout time.Duration
}

// LLMService provides generation using Ollama. Streamed endpoints use a
// separate client so a long generation is not cut off by the one-shot
// timeout.
type LLMService struct {
	client       *http.Client
	streamClient *http.Client
	baseURL      string
	model        string
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is one Ollama /api/generate frame. Non-streaming
// responses are a single frame with Done true.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is one Ollama /api/chat frame.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg Config) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}

	return &LLMService{
		client:       &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{Timeout: cfg.StreamTimeout},
		baseURL:      cfg.BaseURL,
		model:        cfg.Model,
	}
}

// Generate produces a complete text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.post(ctx, s.client, "/api/generate", generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return genResp.Response, nil
}

// Chat produces a complete response to a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []domain.ChatTurn) (string, error) {
	resp, err := s.post(ctx, s.client, "/api/chat", chatRequest{
		Model:    s.model,
		Messages: toChatMessages(messages),
		Stream:   false,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return chatResp.Message.Content, nil
}

// StreamGenerate produces a completion as a token stream.
func (s *LLMService) StreamGenerate(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	return s.stream(ctx, "/api/generate", generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: true,
	}, func(line []byte) (string, bool, error) {
		var frame generateResponse
		if err := json.Unmarshal(line, &frame); err != nil {
			return "", false, fmt.Errorf("decode stream frame: %w", err)
		}
		return frame.Response, frame.Done, nil
	})
}

// StreamChat produces a chat response as a token stream.
func (s *LLMService) StreamChat(ctx context.Context, messages []domain.ChatTurn) (<-chan string, <-chan error) {
	return s.stream(ctx, "/api/chat", chatRequest{
		Model:    s.model,
		Messages: toChatMessages(messages),
		Stream:   true,
	}, func(line []byte) (string, bool, error) {
		var frame chatResponse
		if err := json.Unmarshal(line, &frame); err != nil {
			return "", false, fmt.Errorf("decode stream frame: %w", err)
		}
		return frame.Message.Content, frame.Done, nil
	})
}

// stream posts the request and turns the line-delimited JSON response
// into a token channel. parse extracts the token and done flag from one
// line. Both channels close when the stream ends; the error channel
// carries at most one error.
func (s *LLMService) stream(ctx context.Context, path string, body any, parse func([]byte) (string, bool, error)) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(tokens)
		defer close(errs)

		resp, err := s.post(ctx, s.streamClient, path, body)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			token, done, parseErr := parse(line)
			if parseErr != nil {
				errs <- parseErr
				return
			}

			if token != "" {
				select {
				case tokens <- token:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("read stream: %w", err)
		}
	}()

	return tokens, errs
}

// post sends a JSON request and returns the response on status 200.
// Any other status is turned into an error with the body included.
func (s *LLMService) post(ctx context.Context, client *http.Client, path string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// toChatMessages converts domain turns to the wire format.
func toChatMessages(messages []domain.ChatTurn) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, msg := range messages {
		out[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}
	return out
}

// ModelName returns the name of the generation model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("ollama: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
