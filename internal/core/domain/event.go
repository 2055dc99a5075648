package domain

// EventType tags an answer stream event.
type EventType string

const (
	// EventSources carries the retrieved chunks, redacted for display.
	// Always the first event of a stream, emitted exactly once.
	EventSources EventType = "sources"

	// EventToken carries one fragment of generated answer text.
	EventToken EventType = "token"

	// EventDone marks successful completion. Never follows an error.
	EventDone EventType = "done"

	// EventError carries a terminal error message. Always the last event.
	EventError EventType = "error"
)

// StreamEvent is one element of an ordered, finite answer stream.
// Data holds a []SourcePreview for sources events and a string otherwise.
type StreamEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// SourcePreview is a retrieved chunk redacted for the client: text is
// truncated to a preview, the embedding is omitted, and the similarity
// is rounded.
type SourcePreview struct {
	ID           int64   `json:"id"`
	Source       Source  `json:"source"`
	Contact      string  `json:"contact"`
	StartTime    int64   `json:"start_time"`
	EndTime      int64   `json:"end_time"`
	MessageCount int     `json:"message_count"`
	Similarity   float64 `json:"similarity"`
	Text         string  `json:"text"`
}

// ChatTurn is one prior turn of a multi-turn conversation.
type ChatTurn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the turn text.
	Content string `json:"content"`
}
