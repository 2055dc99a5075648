// Package file is a TOML-backed settings store. Settings live in
// ~/.recall/settings.toml; environment variables fill in anything the
// file does not set.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
)

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// Environment fallbacks, consulted when the file leaves a field unset.
const (
	envBackend   = "RECALL_GENERATION_BACKEND"
	envModel     = "RECALL_GENERATION_MODEL"
	envAPIURL    = "RECALL_GENERATION_API_URL"
	envAPIKey    = "RECALL_GENERATION_API_KEY"
	envEmbedURL  = "RECALL_EMBED_BASE_URL"
	envEmbedName = "RECALL_EMBED_MODEL"
)

// fileSettings is the on-disk TOML document.
type fileSettings struct {
	domain.GenerationSettings
	domain.EmbeddingSettings
}

// SettingsStore reads and writes settings in a single TOML file.
//
// Reads are served from an in-memory cache that is invalidated
// synchronously by SaveGeneration. File timestamps are never consulted:
// out-of-band edits apply on the next process start, and every write
// from this process is visible to the next read.
type SettingsStore struct {
	mu       sync.RWMutex
	filePath string
	cache    *fileSettings
}

// NewSettingsStore creates a store under configDir.
// If configDir is empty, defaults to ~/.recall.
func NewSettingsStore(configDir string) (*SettingsStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".recall")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	return &SettingsStore{
		filePath: filepath.Join(configDir, "settings.toml"),
	}, nil
}

// Generation returns the effective generation settings.
func (s *SettingsStore) Generation() domain.GenerationSettings {
	loaded := s.load().GenerationSettings

	if loaded.Backend == "" {
		loaded.Backend = domain.Backend(os.Getenv(envBackend))
	}
	if loaded.Backend == "" {
		loaded.Backend = domain.BackendOllama
	}
	if loaded.Model == "" {
		loaded.Model = os.Getenv(envModel)
	}
	if loaded.APIURL == "" {
		loaded.APIURL = os.Getenv(envAPIURL)
	}
	if loaded.APIKey == "" {
		loaded.APIKey = os.Getenv(envAPIKey)
	}
	return loaded
}

// Embedding returns the effective embedding settings.
func (s *SettingsStore) Embedding() domain.EmbeddingSettings {
	loaded := s.load().EmbeddingSettings

	if loaded.BaseURL == "" {
		loaded.BaseURL = os.Getenv(envEmbedURL)
	}
	if loaded.Model == "" {
		loaded.Model = os.Getenv(envEmbedName)
	}
	return loaded
}

// SaveGeneration merges the non-empty fields of in into the stored
// settings and writes the file with owner-only permissions. The cache is
// dropped before returning, so the next read reflects the write.
func (s *SettingsStore) SaveGeneration(in domain.GenerationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.read()

	if in.Backend != "" {
		if !in.Backend.Valid() {
			return fmt.Errorf("%w: unknown backend %q", domain.ErrInvalidInput, in.Backend)
		}
		current.Backend = in.Backend
	}
	if in.Model != "" {
		current.GenerationSettings.Model = in.Model
	}
	if in.APIURL != "" {
		current.APIURL = in.APIURL
	}
	if in.APIKey != "" {
		current.APIKey = in.APIKey
	}

	data, err := toml.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	// The file holds an API key, keep it private to the owner.
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}

	s.cache = nil
	return nil
}

// load returns the cached settings, reading the file on first use.
func (s *SettingsStore) load() fileSettings {
	s.mu.RLock()
	if s.cache != nil {
		defer s.mu.RUnlock()
		return *s.cache
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		loaded := s.read()
		s.cache = &loaded
	}
	return *s.cache
}

// read parses the settings file, treating a missing or malformed file as
// empty settings. Must be called with the write lock held.
func (s *SettingsStore) read() fileSettings {
	var settings fileSettings

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return settings
	}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return fileSettings{}
	}
	return settings
}
