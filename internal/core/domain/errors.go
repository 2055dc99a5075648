package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownSource indicates an unrecognised archive source.
	ErrUnknownSource = errors.New("unknown source")

	// ErrIngestInProgress indicates an ingestion for the same source is
	// already running.
	ErrIngestInProgress = errors.New("ingest already in progress")

	// ErrRetrieval indicates query embedding or vector search failed.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrNoResults indicates retrieval returned no matching chunks.
	ErrNoResults = errors.New("no matching chunks found")

	// ErrEmbeddingUnavailable indicates the embedding service cannot be
	// reached or is misconfigured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates the generation backend cannot be
	// reached or is misconfigured.
	ErrGenerationUnavailable = errors.New("generation backend unavailable")
)
