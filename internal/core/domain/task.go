package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

// TaskStatus is the lifecycle state of an ingestion task.
// Transitions are monotonic: pending → running → {done, cancelled, failed}.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskDone      TaskStatus = "done"
	TaskCancelled TaskStatus = "cancelled"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskCancelled || s == TaskFailed
}

// IngestTask tracks one background ingestion run. The ingest service owns
// and mutates it; callers observe it through Snapshot.
type IngestTask struct {
	// ID is the short task identifier.
	ID string

	// Source is the archive being ingested.
	Source Source

	// Since is the optional inclusive cutoff; nil means all time.
	Since *time.Time

	mu                sync.Mutex
	status            TaskStatus
	chunksProcessed   int
	messagesProcessed int
	err               string
	startedAt         *time.Time
	finishedAt        *time.Time

	cancel atomic.Bool
}

// NewIngestTask creates a pending task for the given source and cutoff.
func NewIngestTask(id string, source Source, since *time.Time) *IngestTask {
	return &IngestTask{
		ID:     id,
		Source: source,
		Since:  since,
		status: TaskPending,
	}
}

// TaskSnapshot is a read-only view of a task's state at one moment.
type TaskSnapshot struct {
	ID                string     `json:"id"`
	Source            Source     `json:"source"`
	Since             *time.Time `json:"since,omitempty"`
	Status            TaskStatus `json:"status"`
	ChunksProcessed   int        `json:"chunks_processed"`
	MessagesProcessed int        `json:"messages_processed"`
	Error             string     `json:"error,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// Snapshot returns a consistent copy of the task's mutable state.
func (t *IngestTask) Snapshot() TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TaskSnapshot{
		ID:                t.ID,
		Source:            t.Source,
		Since:             t.Since,
		Status:            t.status,
		ChunksProcessed:   t.chunksProcessed,
		MessagesProcessed: t.messagesProcessed,
		Error:             t.err,
		StartedAt:         t.startedAt,
		FinishedAt:        t.finishedAt,
	}
}

// Status returns the current lifecycle state.
func (t *IngestTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// MarkRunning transitions the task from pending to running.
// It is a no-op if the task has already reached a terminal state.
func (t *IngestTask) MarkRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	now := time.Now().UTC()
	t.status = TaskRunning
	t.startedAt = &now
}

// Finish moves the task to a terminal state. Once terminal, further calls
// are ignored so transitions stay monotonic.
func (t *IngestTask) Finish(status TaskStatus, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	now := time.Now().UTC()
	t.status = status
	t.err = errMsg
	t.finishedAt = &now
}

// AddProgress records one stored chunk and its message count.
func (t *IngestTask) AddProgress(messages int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunksProcessed++
	t.messagesProcessed += messages
}

// RequestCancel asks the worker to stop. The flag is observed cooperatively
// between chunks; an in-flight embedding call is not interrupted.
func (t *IngestTask) RequestCancel() {
	t.cancel.Store(true)
}

// CancelRequested reports whether cancellation has been requested.
func (t *IngestTask) CancelRequested() bool {
	return t.cancel.Load()
}
