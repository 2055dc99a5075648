// Package domain contains the core business types for recall.
// It has no dependencies on adapters or external services and defines
// the vocabulary shared by every layer: raw records, chunks, ingestion
// tasks, answer stream events, and domain errors.
package domain
