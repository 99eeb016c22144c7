// Package voicelib serves per-provider voice catalogs from the library
// directory.
//
// Layout is <root>/<provider>/*.yaml, each file carrying a voices mapping of
// voice id to catalog entry; provider_schema.yaml files are reserved and
// skipped. Catalogs load lazily on first use and stay cached per provider
// until invalidated, so repeated lookups never touch the filesystem.
package voicelib

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"tableread/internal/casting"
	"tableread/internal/logging"
)

// Lookup failures callers branch on.
var (
	ErrProviderNotFound = errors.New("provider not found in voice library")
	ErrVoiceNotFound    = errors.New("voice not found in voice library")
)

const schemaFileName = "provider_schema.yaml"

// Library loads and caches voice catalogs.
type Library struct {
	root   string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string][]casting.LibraryVoice
}

// New builds a library rooted at dir. The directory may be empty or missing;
// lookups simply fail with ErrProviderNotFound until catalogs appear.
func New(root string, logger *slog.Logger) *Library {
	return &Library{
		root:   root,
		logger: logging.NewComponentLogger(logger, "voicelib"),
		cache:  make(map[string][]casting.LibraryVoice),
	}
}

// Root returns the library directory.
func (l *Library) Root() string { return l.root }

// Providers lists provider directories that exist under the root, sorted.
func (l *Library) Providers() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read voice library root %s: %w", l.root, err)
	}
	var providers []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			providers = append(providers, entry.Name())
		}
	}
	sort.Strings(providers)
	return providers, nil
}

// Voices returns the full catalog for a provider, sorted by voice id. The
// result is a deep copy; callers may mutate it freely.
func (l *Library) Voices(provider string) ([]casting.LibraryVoice, error) {
	voices, err := l.load(provider)
	if err != nil {
		return nil, err
	}
	cloned := make([]casting.LibraryVoice, len(voices))
	for i, voice := range voices {
		cloned[i] = voice.Clone()
	}
	return cloned, nil
}

// Voice looks up a single catalog entry.
func (l *Library) Voice(provider, id string) (casting.LibraryVoice, error) {
	voices, err := l.load(provider)
	if err != nil {
		return casting.LibraryVoice{}, err
	}
	for _, voice := range voices {
		if voice.ID == id {
			return voice.Clone(), nil
		}
	}
	return casting.LibraryVoice{}, fmt.Errorf("%w: %s/%s", ErrVoiceNotFound, provider, id)
}

// HasVoice reports whether a provider catalog contains the voice id.
func (l *Library) HasVoice(provider, id string) (bool, error) {
	_, err := l.Voice(provider, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrVoiceNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ExpandConfig resolves a voice id to its full provider configuration: the
// catalog entry's config section plus the provider field.
func (l *Library) ExpandConfig(provider, id string) (map[string]any, error) {
	if strings.TrimSpace(provider) == "" {
		return nil, errors.New("provider is empty")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty voice id for provider %s", ErrVoiceNotFound, provider)
	}
	voice, err := l.Voice(provider, id)
	if err != nil {
		return nil, err
	}
	config := voice.Config
	if config == nil {
		return nil, fmt.Errorf("voice %s/%s has no config section", provider, id)
	}
	config["provider"] = provider
	return config, nil
}

// Invalidate drops the cached catalog for one provider; the next lookup
// reloads from disk.
func (l *Library) Invalidate(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, provider)
}

// Reset drops every cached catalog.
func (l *Library) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string][]casting.LibraryVoice)
}

func (l *Library) load(provider string) ([]casting.LibraryVoice, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, errors.New("provider is empty")
	}

	l.mu.RLock()
	cached, ok := l.cache[provider]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	dir := filepath.Join(l.root, provider)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, provider)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scan voice catalogs for %s: %w", provider, err)
	}
	sort.Strings(paths)

	merged := make(map[string]casting.LibraryVoice)
	for _, path := range paths {
		if filepath.Base(path) == schemaFileName {
			continue
		}
		entries, err := loadCatalogFile(path)
		if err != nil {
			// One broken file must not hide the rest of the catalog.
			l.logger.Warn("skipping voice catalog file",
				logging.String("path", path), logging.Error(err))
			continue
		}
		for id, voice := range entries {
			voice.Provider = provider
			voice.ID = id
			merged[id] = voice
		}
	}

	voices := make([]casting.LibraryVoice, 0, len(merged))
	for _, voice := range merged {
		voices = append(voices, voice)
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].ID < voices[j].ID })

	l.mu.Lock()
	l.cache[provider] = voices
	l.mu.Unlock()
	return voices, nil
}

type catalogFile struct {
	Voices map[string]catalogEntry `yaml:"voices"`
}

type catalogEntry struct {
	DisplayName string         `yaml:"display_name"`
	Description string         `yaml:"description"`
	Tags        []string       `yaml:"tags"`
	Config      map[string]any `yaml:"config"`
}

func loadCatalogFile(path string) (map[string]casting.LibraryVoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	voices := make(map[string]casting.LibraryVoice, len(file.Voices))
	for id, entry := range file.Voices {
		voices[id] = casting.LibraryVoice{
			DisplayName: entry.DisplayName,
			Description: entry.Description,
			Tags:        entry.Tags,
			Config:      entry.Config,
		}
	}
	return voices, nil
}
