package quota

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

const (
	KeyDate         = "mori.gametime.date"
	KeyUsedSeconds  = "mori.gametime.used_seconds"
	KeyLimitMinutes = "mori.gametime.limit_minutes"
	KeySessions     = "mori.gametime.sessions"
)

// LocalStore is device-local string storage.
type LocalStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// FileStore keeps all keys in one JSON document, rewritten atomically on
// every Set.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return fs, nil
	case err != nil:
		return nil, err
	}
	if len(raw) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fs, nil
}

func (fs *FileStore) Get(key string) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, ok := fs.data[key]
	return v, ok
}

func (fs *FileStore) Set(key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, had := fs.data[key]
	fs.data[key] = value
	if err := fs.flush(); err != nil {
		if had {
			fs.data[key] = prev
		} else {
			delete(fs.data, key)
		}
		return err
	}
	return nil
}

func (fs *FileStore) flush() error {
	raw, err := json.Marshal(fs.data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return err
	}

	tmpFile := fs.path + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0o600); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, fs.path)
}

// MemoryStore is a LocalStore that forgets everything on exit.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
	// Err, when set, fails every Set.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data[key] = value
	return nil
}
