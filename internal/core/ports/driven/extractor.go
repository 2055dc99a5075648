package driven

import (
	"context"
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// ChatExtractor streams decoded chat messages from the local archive.
//
// Extract returns a lazy, finite, non-restartable record stream: the
// message channel delivers rows ordered by (contact, date) ascending — an
// ordering the chunker depends on — and is closed on exhaustion. The error
// channel receives at most one error and is closed with the stream.
// Records with no decodable text are skipped, never surfaced as errors.
type ChatExtractor interface {
	// Extract streams messages, optionally bounded by an inclusive since
	// cutoff. Cancelling the context stops the stream.
	Extract(ctx context.Context, since *time.Time) (<-chan domain.RawMessage, <-chan error)
}

// MailExtractor streams parsed mail messages from the local archive.
//
// The stream contract matches ChatExtractor: lazy, finite, non-restartable,
// closed channels signal completion. Mail records carry no ordering
// guarantee. Unreadable or text-less messages are skipped silently.
type MailExtractor interface {
	Extract(ctx context.Context, since *time.Time) (<-chan domain.RawEmail, <-chan error)
}
