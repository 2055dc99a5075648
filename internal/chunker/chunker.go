// Package chunker groups raw records into retrieval chunks.
// Chat messages are grouped by contact and conversation window; mail
// messages map one-to-one onto chunks.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// DefaultWindow is the conversation gap that starts a new chat chunk.
const DefaultWindow = 4 * time.Hour

// selfLabel is the sender label for messages written by the archive owner.
const selfLabel = "Me"

// timeLayout formats record timestamps inside chunk text.
const timeLayout = "2006-01-02 15:04"

// ChatChunks groups a stream of chat messages into conversation chunks.
//
// The input must be ordered by (contact, date) ascending, as produced by
// the chat extractor. A chunk boundary occurs when the contact changes or
// when the gap to the previous message exceeds window. Only one open
// buffer is retained at a time, so arbitrarily long histories stream in
// constant memory. The final buffer is flushed when the input closes.
func ChatChunks(ctx context.Context, messages <-chan domain.RawMessage, window time.Duration) <-chan domain.Chunk {
	if window <= 0 {
		window = DefaultWindow
	}

	out := make(chan domain.Chunk)
	go func() {
		defer close(out)

		var buffer []domain.RawMessage
		flush := func() bool {
			if len(buffer) == 0 {
				return true
			}
			select {
			case out <- formatChatChunk(buffer):
			case <-ctx.Done():
				return false
			}
			buffer = nil
			return true
		}

		for msg := range messages {
			switch {
			case len(buffer) == 0:
				buffer = append(buffer, msg)
			case msg.Contact != buffer[0].Contact:
				if !flush() {
					return
				}
				buffer = append(buffer, msg)
			case msg.Date.Sub(buffer[len(buffer)-1].Date) > window:
				if !flush() {
					return
				}
				buffer = append(buffer, msg)
			default:
				buffer = append(buffer, msg)
			}
		}

		flush()
	}()
	return out
}

// formatChatChunk renders one conversation window as a chunk.
// One line per message: "[time] sender: text".
func formatChatChunk(messages []domain.RawMessage) domain.Chunk {
	contact := messages[0].Contact

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		sender := contact
		if msg.IsFromMe {
			sender = selfLabel
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", msg.Date.Format(timeLayout), sender, msg.Text))
	}

	return domain.Chunk{
		Source:       domain.SourceIMessage,
		Contact:      contact,
		StartTime:    messages[0].Date,
		EndTime:      messages[len(messages)-1].Date,
		Text:         strings.Join(lines, "\n"),
		MessageCount: len(messages),
	}
}

// MailChunks maps each mail message onto exactly one chunk: a header
// block (sender, recipients, date, subject), a blank line, then the body.
func MailChunks(ctx context.Context, emails <-chan domain.RawEmail) <-chan domain.Chunk {
	out := make(chan domain.Chunk)
	go func() {
		defer close(out)
		for em := range emails {
			select {
			case out <- formatMailChunk(em):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func formatMailChunk(em domain.RawEmail) domain.Chunk {
	text := fmt.Sprintf(
		"From: %s\nTo: %s\nDate: %s\nSubject: %s\n\n%s",
		em.Sender, em.Recipients, em.Date.Format(timeLayout), em.Subject, em.Body,
	)
	return domain.Chunk{
		Source:       domain.SourceEmail,
		Contact:      em.Sender,
		StartTime:    em.Date,
		EndTime:      em.Date,
		Text:         text,
		MessageCount: 1,
	}
}
