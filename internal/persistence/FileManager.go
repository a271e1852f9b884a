package persistence

import (
	"fmt"
	json "github.com/goccy/go-json"
	"moriportal/internal/persistence/interfaces"
	"moriportal/internal/providers"
	"moriportal/internal/storage"
	"os"
	"time"
)

const snapshotVersion = 1

// Snapshot is the on-disk envelope of the in-memory store.
type Snapshot struct {
	Version int               `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	Entries map[string]string `json:"entries"`
}

type FileManager struct {
	store      storage.Snapshotter
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

// NewFileManager returns a manager that is inactive when the store keeps
// its own durability (redis, sqlite).
func NewFileManager(compressor interfaces.CompressorInterface, store storage.Store, logger providers.Logger) *FileManager {
	snap, _ := store.(storage.Snapshotter)
	return &FileManager{
		compressor: compressor,
		store:      snap,
		logger:     logger,
	}
}

func (f *FileManager) Enabled() bool {
	return f.store != nil
}

func (f *FileManager) SaveToFile(fileName string) error {
	if f.store == nil {
		return nil
	}

	entries := f.store.Snapshot()
	snapshot := Snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Entries: make(map[string]string, len(entries)),
	}
	for k, v := range entries {
		snapshot.Entries[k] = string(v)
	}

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) Close() {
	f.compressor.Close()
}

func (f *FileManager) LoadFromFile(fileName string) error {
	if f.store == nil {
		return nil
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(decompressedData, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snapshot.Version > snapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported %d", snapshot.Version, snapshotVersion)
	}

	entries := make(map[string][]byte, len(snapshot.Entries))
	for k, v := range snapshot.Entries {
		entries[k] = []byte(v)
	}
	f.store.Restore(entries)
	f.logger.Infof(providers.TypeStore, "Restored %d keys from %s (saved %s)", len(entries), fileName, snapshot.SavedAt.Format(time.RFC3339))
	return nil
}
