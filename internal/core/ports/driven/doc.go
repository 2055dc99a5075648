// Package driven defines the interfaces the core services depend on:
// archive extractors, the embedding and generation clients, the vector
// store, and the settings store. Adapters implement these interfaces.
package driven
