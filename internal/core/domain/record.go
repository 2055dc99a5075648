package domain

import "time"

// RawMessage is a single decoded chat message before chunking.
// It is the chat extractor's output and is never persisted directly.
type RawMessage struct {
	// RowID is the message row identifier in the chat database.
	RowID int64

	// Text is the decoded message text. Always non-empty; rows without
	// usable text are skipped by the extractor.
	Text string

	// Date is the message timestamp in UTC.
	Date time.Time

	// IsFromMe indicates the message was sent by the archive owner.
	IsFromMe bool

	// Contact is the counterpart identifier (phone number or email).
	Contact string
}

// RawEmail is a single parsed mail message before chunking.
// It is the mail extractor's output and is never persisted directly.
type RawEmail struct {
	// Filepath is the emlx file this message was parsed from.
	Filepath string

	// Subject is the decoded Subject header.
	Subject string

	// Sender is the From header.
	Sender string

	// Recipients is the To header.
	Recipients string

	// Date is the parsed Date header in UTC.
	Date time.Time

	// Body is the extracted plain text body. Always non-empty.
	Body string

	// MessageID is the Message-ID header, if present.
	MessageID string
}
