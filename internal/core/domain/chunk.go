package domain

import "time"

// Chunk is one retrieval unit: a contiguous span of records from a single
// contact rendered as a text block with a time range. Chunks are immutable
// after creation.
type Chunk struct {
	// Source is the archive the chunk came from.
	Source Source

	// Contact is the conversation counterpart (or mail sender).
	Contact string

	// StartTime is the timestamp of the first record, UTC.
	StartTime time.Time

	// EndTime is the timestamp of the last record, UTC.
	// Equal to StartTime for single-record chunks.
	EndTime time.Time

	// Text is the formatted chunk text. Never empty.
	Text string

	// MessageCount is the number of records in the chunk, at least 1.
	MessageCount int

	// Metadata contains optional opaque key-value pairs.
	Metadata map[string]any
}

// ScoredChunk is a stored chunk annotated with a similarity score.
// Rows fetched by ID rather than by ranked search carry Similarity 0.
type ScoredChunk struct {
	ID           int64
	Source       Source
	Contact      string
	StartTime    time.Time
	EndTime      time.Time
	Text         string
	MessageCount int
	Similarity   float64
	Metadata     map[string]any
}

// StoreStats summarises the vector store contents.
// A store that has never been created reports all-zero values.
type StoreStats struct {
	// TotalChunks is the number of stored chunks.
	TotalChunks int

	// BySource maps each source to its chunk count.
	BySource map[Source]int

	// SizeBytes is the on-disk size of the database file.
	SizeBytes int64
}
