package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

func newTestService(t *testing.T, apiKey string, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewLLMService(Config{BaseURL: server.URL, APIKey: apiKey})
}

func completionJSON(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func collect(t *testing.T, tokens <-chan string, errs <-chan error) (string, error) {
	t.Helper()
	var sb strings.Builder
	for token := range tokens {
		sb.WriteString(token)
	}
	return sb.String(), <-errs
}

func TestChat(t *testing.T) {
	svc := newTestService(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hi", req.Messages[0].Content)

		fmt.Fprint(w, completionJSON("hello there"))
	})

	out, err := svc.Chat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}

func TestGenerateWrapsPromptAsUserMessage(t *testing.T) {
	svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "the prompt", req.Messages[0].Content)

		fmt.Fprint(w, completionJSON("done"))
	})

	out, err := svc.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestChatNoChoices(t *testing.T) {
	svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := svc.Chat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestChatErrorStatus(t *testing.T) {
	svc := newTestService(t, "bad-key", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := svc.Chat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func sseFrame(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"delta": map[string]string{"content": content}},
		},
	})
	return "data: " + string(b) + "\n\n"
}

func TestStreamChat(t *testing.T) {
	svc := newTestService(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrame("str"))
		fmt.Fprint(w, sseFrame("eam"))
		fmt.Fprint(w, sseFrame("ed"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	tokens, errs := svc.StreamChat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	out, err := collect(t, tokens, errs)
	require.NoError(t, err)
	assert.Equal(t, "streamed", out)
}

func TestStreamChatIgnoresNonDataLines(t *testing.T) {
	svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keepalive comment\n")
		fmt.Fprint(w, "event: message\n")
		fmt.Fprint(w, sseFrame("ok"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	tokens, errs := svc.StreamChat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	out, err := collect(t, tokens, errs)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestStreamChatEmptyChoicesFrame(t *testing.T) {
	svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[]}\n\n")
		fmt.Fprint(w, sseFrame("fine"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	tokens, errs := svc.StreamChat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	out, err := collect(t, tokens, errs)
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}

func TestStreamChatErrorStatus(t *testing.T) {
	svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	tokens, errs := svc.StreamChat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	out, err := collect(t, tokens, errs)
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "status 429")
}

func TestStreamChatMalformedFrame(t *testing.T) {
	svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseFrame("good"))
		fmt.Fprint(w, "data: {broken\n\n")
	})

	tokens, errs := svc.StreamChat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	out, err := collect(t, tokens, errs)
	require.Error(t, err)
	assert.Equal(t, "good", out)
}

func TestPingInvalidKey(t *testing.T) {
	svc := newTestService(t, "bad", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := svc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")
}

func TestDefaults(t *testing.T) {
	svc := NewLLMService(Config{})
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}
