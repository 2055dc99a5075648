// Package services contains the application core: ingestion orchestration
// and retrieval-augmented querying, expressed purely against the driven
// ports.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recall-labs/recall-cli/internal/chunker"
	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
	"github.com/recall-labs/recall-cli/internal/core/ports/driving"
	"github.com/recall-labs/recall-cli/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestOrchestrator = (*IngestService)(nil)

// IngestService runs ingestion jobs on background goroutines and keeps a
// registry of every task started during the process lifetime.
type IngestService struct {
	chat     driven.ChatExtractor
	mail     driven.MailExtractor
	store    driven.VectorStore
	backends driven.BackendFactory
	window   time.Duration

	mu    sync.Mutex
	tasks map[string]*domain.IngestTask
}

// NewIngestService creates the orchestrator. A zero window uses the
// default chat chunking window.
func NewIngestService(chat driven.ChatExtractor, mail driven.MailExtractor, store driven.VectorStore, backends driven.BackendFactory, window time.Duration) *IngestService {
	if window == 0 {
		window = chunker.DefaultWindow
	}
	return &IngestService{
		chat:     chat,
		mail:     mail,
		store:    store,
		backends: backends,
		window:   window,
		tasks:    make(map[string]*domain.IngestTask),
	}
}

// Start launches a background ingestion for the source. The in-progress
// check and the registry insert happen under one lock, so two concurrent
// Start calls for the same source cannot both succeed.
func (s *IngestService) Start(source domain.Source, since *time.Time) (domain.TaskSnapshot, error) {
	if !source.Valid() {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}

	s.mu.Lock()
	for _, task := range s.tasks {
		if task.Source == source && !task.Status().Terminal() {
			s.mu.Unlock()
			return domain.TaskSnapshot{}, fmt.Errorf("%w: task %s", domain.ErrIngestInProgress, task.ID)
		}
	}

	task := domain.NewIngestTask(newTaskID(), source, since)
	s.tasks[task.ID] = task
	s.mu.Unlock()

	go s.run(task)

	return task.Snapshot(), nil
}

// Get returns a snapshot of the task with the given id.
func (s *IngestService) Get(id string) (domain.TaskSnapshot, error) {
	s.mu.Lock()
	task, ok := s.tasks[id]
	s.mu.Unlock()

	if !ok {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: task %q", domain.ErrNotFound, id)
	}
	return task.Snapshot(), nil
}

// All returns snapshots of every known task.
func (s *IngestService) All() []domain.TaskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots := make([]domain.TaskSnapshot, 0, len(s.tasks))
	for _, task := range s.tasks {
		snapshots = append(snapshots, task.Snapshot())
	}
	return snapshots
}

// RequestCancel flags the task for cooperative cancellation.
func (s *IngestService) RequestCancel(id string) error {
	s.mu.Lock()
	task, ok := s.tasks[id]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: task %q", domain.ErrNotFound, id)
	}
	task.RequestCancel()
	return nil
}

// run is the ingestion worker: extract, chunk, embed, store. It owns the
// task's terminal transition.
func (s *IngestService) run(task *domain.IngestTask) {
	task.MarkRunning()
	logger.Info("ingest %s: started for source %s", task.ID, task.Source)

	embedder, err := s.backends.Embedder()
	if err != nil {
		task.Finish(domain.TaskFailed, fmt.Sprintf("creating embedder: %v", err))
		return
	}
	defer embedder.Close()

	// Cancelling this context tears the extractor pipeline down once the
	// cancel flag is observed between chunks.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chunks, errs := s.pipeline(ctx, task.Source, task.Since)

	for chunk := range chunks {
		if task.CancelRequested() {
			cancel()
			drain(chunks)
			task.Finish(domain.TaskCancelled, "")
			logger.Info("ingest %s: cancelled after %d chunks", task.ID, task.Snapshot().ChunksProcessed)
			return
		}

		embedding, err := embedder.Embed(ctx, chunk.Text)
		if err != nil {
			// One bad chunk must not sink a long run.
			logger.Warn("ingest %s: embedding failed, chunk skipped: %v", task.ID, err)
			continue
		}

		if _, err := s.store.Upsert(ctx, chunk, embedding); err != nil {
			cancel()
			drain(chunks)
			task.Finish(domain.TaskFailed, fmt.Sprintf("storing chunk: %v", err))
			return
		}

		task.AddProgress(chunk.MessageCount)
	}

	if err := <-errs; err != nil {
		task.Finish(domain.TaskFailed, fmt.Sprintf("extracting records: %v", err))
		return
	}

	snapshot := task.Snapshot()
	task.Finish(domain.TaskDone, "")
	logger.Info("ingest %s: done, %d chunks / %d messages", task.ID, snapshot.ChunksProcessed, snapshot.MessagesProcessed)
}

// pipeline wires the source's extractor into the matching chunker.
func (s *IngestService) pipeline(ctx context.Context, source domain.Source, since *time.Time) (<-chan domain.Chunk, <-chan error) {
	switch source {
	case domain.SourceIMessage:
		messages, errs := s.chat.Extract(ctx, since)
		return chunker.ChatChunks(ctx, messages, s.window), errs
	default:
		emails, errs := s.mail.Extract(ctx, since)
		return chunker.MailChunks(ctx, emails), errs
	}
}

// drain empties a cancelled chunk channel so the producer can exit.
func drain(chunks <-chan domain.Chunk) {
	for range chunks {
	}
}

// newTaskID returns a short random task identifier.
func newTaskID() string {
	return uuid.NewString()[:8]
}
