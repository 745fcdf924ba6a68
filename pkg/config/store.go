package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.yaml.in/yaml/v3"
)

// Format selects the on-disk encoding of a FileStore.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

const (
	configFileName      = "config.yaml"
	credentialsFileName = "credentials.json"
)

// Store persists a flat key/value document such as the CLI config or the
// stored credentials.
type Store interface {
	Load() (map[string]string, error)
	Save(values map[string]string) error
	Delete() error
	Path() string
}

// FileStore keeps a document in a single file readable only by the owner.
type FileStore struct {
	path   string
	format Format
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string, format Format) *FileStore {
	return &FileStore{path: path, format: format}
}

// FileStores returns the config and credentials stores rooted at dir.
func FileStores(dir string) (*FileStore, *FileStore) {
	return NewFileStore(filepath.Join(dir, configFileName), FormatYAML),
		NewFileStore(filepath.Join(dir, credentialsFileName), FormatJSON)
}

// DefaultDir resolves the directory holding config and credentials.
func DefaultDir() (string, error) {
	if dir := GetString("TEMPS_CONFIG_DIR", ""); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "temps"), nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (map[string]string, error) {
	values := map[string]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	switch s.format {
	case FormatJSON:
		err = json.Unmarshal(data, &values)
	default:
		err = yaml.Unmarshal(data, &values)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return values, nil
}

func (s *FileStore) Save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var (
		data []byte
		err  error
	)
	switch s.format {
	case FormatJSON:
		data, err = json.MarshalIndent(values, "", "  ")
	default:
		data, err = yaml.Marshal(values)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore is an in-process Store, mostly useful in tests.
type MemoryStore struct {
	mu     sync.Mutex
	name   string
	values map[string]string
}

// NewMemoryStore returns a store seeded with a copy of initial.
func NewMemoryStore(name string, initial map[string]string) *MemoryStore {
	return &MemoryStore{name: name, values: copyValues(initial)}
}

func (m *MemoryStore) Path() string { return "memory://" + m.name }

func (m *MemoryStore) Load() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyValues(m.values), nil
}

func (m *MemoryStore) Save(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = copyValues(values)
	return nil
}

func (m *MemoryStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{}
	return nil
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
