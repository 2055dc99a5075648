package driving

import (
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// IngestOrchestrator runs ingestion jobs on background workers and tracks
// their progress. One registry instance lives for the process lifetime.
type IngestOrchestrator interface {
	// Start launches a background ingestion for the source and returns
	// immediately with the pending task. Returns ErrIngestInProgress if a
	// task for the same source is already running, ErrUnknownSource for an
	// unrecognised source.
	Start(source domain.Source, since *time.Time) (domain.TaskSnapshot, error)

	// Get returns a snapshot of the task with the given id.
	Get(id string) (domain.TaskSnapshot, error)

	// All returns snapshots of every known task.
	All() []domain.TaskSnapshot

	// RequestCancel sets the task's cancel flag. It does not block and
	// does not guarantee an immediate stop: the worker observes the flag
	// between chunks.
	RequestCancel(id string) error
}
