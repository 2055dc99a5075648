package ollama

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

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewLLMService(Config{BaseURL: server.URL})
}

func collect(t *testing.T, tokens <-chan string, errs <-chan error) (string, error) {
	t.Helper()
	var sb strings.Builder
	for token := range tokens {
		sb.WriteString(token)
	}
	return sb.String(), <-errs
}

func TestGenerate(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what happened?", req.Prompt)
		assert.False(t, req.Stream)

		require.NoError(t, json.NewEncoder(w).Encode(generateResponse{Response: "an answer", Done: true}))
	})

	out, err := svc.Generate(context.Background(), "what happened?")
	require.NoError(t, err)
	assert.Equal(t, "an answer", out)
}

func TestGenerateServerError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := svc.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestChat(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "assistant", req.Messages[1].Role)

		require.NoError(t, json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "reply"},
			Done:    true,
		}))
	})

	out, err := svc.Chat(context.Background(), []domain.ChatTurn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "reply", out)
}

func TestStreamGenerate(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		for _, token := range []string{"The ", "cat ", "sat."} {
			fmt.Fprintf(w, "{\"response\":%q,\"done\":false}\n", token)
		}
		fmt.Fprintln(w, `{"response":"","done":true}`)
	})

	tokens, errs := svc.StreamGenerate(context.Background(), "p")
	out, err := collect(t, tokens, errs)
	require.NoError(t, err)
	assert.Equal(t, "The cat sat.", out)
}

func TestStreamChat(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	})

	tokens, errs := svc.StreamChat(context.Background(), []domain.ChatTurn{{Role: "user", Content: "hi"}})
	out, err := collect(t, tokens, errs)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestStreamGenerateSkipsBlankLines(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"a","done":false}`)
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, `{"response":"b","done":true}`)
	})

	tokens, errs := svc.StreamGenerate(context.Background(), "p")
	out, err := collect(t, tokens, errs)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}

func TestStreamGenerateErrorStatus(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	tokens, errs := svc.StreamGenerate(context.Background(), "p")
	out, err := collect(t, tokens, errs)
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "status 503")
}

func TestStreamGenerateMalformedFrame(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"ok","done":false}`)
		fmt.Fprintln(w, `{not json`)
	})

	tokens, errs := svc.StreamGenerate(context.Background(), "p")
	out, err := collect(t, tokens, errs)
	require.Error(t, err)
	assert.Equal(t, "ok", out)
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, svc.Ping(context.Background()))
}

func TestDefaults(t *testing.T) {
	svc := NewLLMService(Config{})
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}
