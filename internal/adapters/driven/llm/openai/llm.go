// Package openai provides a generation service adapter for
// OpenAI-compatible chat completion APIs.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o-mini"
	DefaultTimeout       = 30 * time.Second
	DefaultStreamTimeout = 300 * time.Second
)

// doneSentinel terminates an SSE completion stream.
const doneSentinel = "[DONE]"

// maxScanTokenSize bounds a single SSE line.
const maxScanTokenSize = 1024 * 1024

// Config holds configuration for an OpenAI-compatible LLM service.
type Config struct {
	// BaseURL is the API base URL including any /v1 prefix
	// (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the generation model to use (default: gpt-4o-mini).
	Model string

	// APIKey is the bearer token. Empty works for keyless local servers.
	APIKey string

	// Timeout is the one-shot request timeout (default: 30s).
	Timeout time.Duration

	// StreamTimeout bounds an entire streamed response (default: 300s).
	StreamTimeout time.Duration
}

// LLMService provides generation against any server speaking the OpenAI
// chat completions protocol, including local llama.cpp and vLLM hosts.
type LLMService struct {
	client       *http.Client
	streamClient *http.Client
	baseURL      string
	model        string
	apiKey       string
}

// chatMessage is the wire message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionRequest is the /chat/completions request format.
type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// completionResponse is a non-streaming /chat/completions response.
type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// streamFrame is one SSE data frame of a streaming completion.
type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// NewLLMService creates a new OpenAI-compatible LLM service.
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
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
	}
}

// Generate produces a complete text completion from a prompt by sending
// it as a single user message.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	return s.Chat(ctx, []domain.ChatTurn{{Role: "user", Content: prompt}})
}

// Chat produces a complete response to a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []domain.ChatTurn) (string, error) {
	resp, err := s.post(ctx, s.client, completionRequest{
		Model:    s.model,
		Messages: toChatMessages(messages),
		Stream:   false,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("response contains no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// StreamGenerate produces a completion as a token stream by sending the
// prompt as a single user message.
func (s *LLMService) StreamGenerate(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	return s.StreamChat(ctx, []domain.ChatTurn{{Role: "user", Content: prompt}})
}

// StreamChat produces a chat response as a token stream. The response is
// parsed as server-sent events: each "data:" line carries one delta
// frame until the [DONE] sentinel. Both channels close when the stream
// ends; the error channel carries at most one error.
func (s *LLMService) StreamChat(ctx context.Context, messages []domain.ChatTurn) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(tokens)
		defer close(errs)

		resp, err := s.post(ctx, s.streamClient, completionRequest{
			Model:    s.model,
			Messages: toChatMessages(messages),
			Stream:   true,
		})
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == doneSentinel {
				return
			}

			var frame streamFrame
			if err := json.Unmarshal([]byte(payload), &frame); err != nil {
				errs <- fmt.Errorf("decode stream frame: %w", err)
				return
			}
			if len(frame.Choices) == 0 {
				continue
			}

			if token := frame.Choices[0].Delta.Content; token != "" {
				select {
				case tokens <- token:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("read stream: %w", err)
		}
	}()

	return tokens, errs
}

// post sends a JSON request to /chat/completions and returns the
// response on status 200.
func (s *LLMService) post(ctx context.Context, client *http.Client, body completionRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("api error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(respBody))
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

// Ping validates the service is reachable by listing models. Servers
// that do not implement /models still prove reachability by answering
// at all, so only transport failures count.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("openai: invalid API key")
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
