// Package driving defines the interfaces through which the CLI and web
// layers drive the core services. The outer layers never touch extractor
// or chunker internals directly.
package driving
