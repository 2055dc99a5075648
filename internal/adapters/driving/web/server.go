// Package web exposes the query and ingestion API over HTTP. Answer
// streams are delivered as server-sent events; everything else is plain
// JSON. The server is a thin translation layer: all behaviour lives
// behind the driving ports.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
	"github.com/recall-labs/recall-cli/internal/core/ports/driving"
	"github.com/recall-labs/recall-cli/internal/logger"
)

// shutdownGrace bounds graceful shutdown once the context is cancelled.
const shutdownGrace = 5 * time.Second

// defaultTopK is used when a request does not specify top_k.
const defaultTopK = 5

// Server handles the HTTP API.
type Server struct {
	query    driving.QueryService
	ingest   driving.IngestOrchestrator
	settings driven.SettingsStore
	store    driven.VectorStore
	mux      *http.ServeMux
}

// NewServer wires the API routes.
func NewServer(query driving.QueryService, ingest driving.IngestOrchestrator, settings driven.SettingsStore, store driven.VectorStore) *Server {
	s := &Server{
		query:    query,
		ingest:   ingest,
		settings: settings,
		store:    store,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/query/stream", s.handleQueryStream)
	s.mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)
	s.mux.HandleFunc("GET /api/query/retrieve", s.handleRetrieve)
	s.mux.HandleFunc("GET /api/chunk/{id}", s.handleChunk)
	s.mux.HandleFunc("POST /api/ingest/start", s.handleIngestStart)
	s.mux.HandleFunc("GET /api/ingest/tasks", s.handleIngestTasks)
	s.mux.HandleFunc("POST /api/ingest/cancel/{id}", s.handleIngestCancel)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/settings", s.handleSettingsGet)
	s.mux.HandleFunc("POST /api/settings", s.handleSettingsPost)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// ==================== Streaming ====================

// handleQueryStream streams a single-question answer as SSE.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	events := s.query.StreamAnswer(r.Context(), q, queryTopK(r), domain.Source(r.URL.Query().Get("source")))
	streamSSE(w, events)
}

// chatRequest is the multi-turn streaming request body.
type chatRequest struct {
	Query   string            `json:"query"`
	History []domain.ChatTurn `json:"history"`
	TopK    int               `json:"top_k"`
	Source  string            `json:"source"`
}

// handleChatStream streams a multi-turn answer as SSE.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	events := s.query.StreamAnswerChat(r.Context(), req.Query, req.History, req.TopK, domain.Source(req.Source))
	streamSSE(w, events)
}

// streamSSE frames each event as one SSE data line.
func streamSSE(w http.ResponseWriter, events <-chan domain.StreamEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			logger.Warn("web: dropping unencodable event: %v", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// ==================== Retrieval ====================

// chunkJSON is the wire form of a stored chunk.
type chunkJSON struct {
	ID           int64          `json:"id"`
	Source       domain.Source  `json:"source"`
	Contact      string         `json:"contact"`
	StartTime    int64          `json:"start_time"`
	EndTime      int64          `json:"end_time"`
	Text         string         `json:"text"`
	MessageCount int            `json:"message_count"`
	Similarity   float64        `json:"similarity"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func toChunkJSON(chunks []domain.ScoredChunk) []chunkJSON {
	out := make([]chunkJSON, len(chunks))
	for i, c := range chunks {
		out[i] = chunkJSON{
			ID:           c.ID,
			Source:       c.Source,
			Contact:      c.Contact,
			StartTime:    c.StartTime.Unix(),
			EndTime:      c.EndTime.Unix(),
			Text:         c.Text,
			MessageCount: c.MessageCount,
			Similarity:   c.Similarity,
			Metadata:     c.Metadata,
		}
	}
	return out
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	chunks, err := s.query.Retrieve(r.Context(), q, queryTopK(r), domain.Source(r.URL.Query().Get("source")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": toChunkJSON(chunks)})
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chunk id")
		return
	}

	chunks, err := s.query.FetchChunks(r.Context(), []int64{id})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(chunks) == 0 {
		writeError(w, http.StatusNotFound, "chunk not found")
		return
	}
	writeJSON(w, http.StatusOK, toChunkJSON(chunks)[0])
}

// ==================== Ingestion ====================

// ingestRequest is the ingestion start request body.
type ingestRequest struct {
	Source    string `json:"source"`
	SinceDays int    `json:"since_days"`
}

func (s *Server) handleIngestStart(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var since *time.Time
	if req.SinceDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -req.SinceDays)
		since = &cutoff
	}

	snapshot, err := s.ingest.Start(domain.Source(req.Source), since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) handleIngestTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.ingest.All()})
}

func (s *Server) handleIngestCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ingest.RequestCancel(id); err != nil {
		writeDomainError(w, err)
		return
	}

	snapshot, err := s.ingest.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// ==================== Status and settings ====================

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_chunks": stats.TotalChunks,
		"by_source":    stats.BySource,
		"size_bytes":   stats.SizeBytes,
	})
}

// settingsJSON is the settings wire format. The API key is write-only:
// responses carry only whether one is set.
type settingsJSON struct {
	Backend   string `json:"backend,omitempty"`
	Model     string `json:"model,omitempty"`
	APIURL    string `json:"api_url,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	APIKeySet bool   `json:"api_key_set"`
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	gen := s.settings.Generation()
	writeJSON(w, http.StatusOK, settingsJSON{
		Backend:   string(gen.Backend),
		Model:     gen.Model,
		APIURL:    gen.APIURL,
		APIKeySet: gen.APIKey != "",
	})
}

func (s *Server) handleSettingsPost(w http.ResponseWriter, r *http.Request) {
	var req settingsJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.settings.SaveGeneration(domain.GenerationSettings{
		Backend: domain.Backend(req.Backend),
		Model:   req.Model,
		APIURL:  req.APIURL,
		APIKey:  req.APIKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.handleSettingsGet(w, r)
}

// ==================== Helpers ====================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("web: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownSource):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrIngestInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrGenerationUnavailable):
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}

// queryTopK parses the top_k query parameter with a default.
func queryTopK(r *http.Request) int {
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return defaultTopK
}
