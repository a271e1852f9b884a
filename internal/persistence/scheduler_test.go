package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"moriportal/internal/storage"
	"moriportal/internal/structures"
	"moriportal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(filePath string) *structures.Config {
	return &structures.Config{
		Persistence: structures.Persistence{
			FilePath:     filePath,
			SaveInterval: 50 * time.Millisecond,
		},
	}
}

func TestScheduler_Restore_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restore.dat")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"entries":{"visit_count":"42"}}`), 0644))

	store := storage.NewMemoryStore()
	logger := &testutil.MockLogger{}
	fm := NewFileManager(&testutil.MockCompressor{}, store, logger)

	s := NewScheduler(testConfig(path), logger, fm, &testutil.MockMetrics{})
	require.NoError(t, s.Restore())

	v, ok, _ := store.Get(context.Background(), "visit_count")
	assert.True(t, ok)
	assert.Equal(t, "42", string(v))
}

func TestScheduler_Restore_FileNotExist(t *testing.T) {
	logger := &testutil.MockLogger{}
	fm := NewFileManager(&testutil.MockCompressor{}, storage.NewMemoryStore(), logger)

	s := NewScheduler(testConfig("/nonexistent/file.dat"), logger, fm, &testutil.MockMetrics{})
	assert.NoError(t, s.Restore())
}

func TestScheduler_Persist_WritesFileAndObservesDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.dat")
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "visit_count", []byte("7")))

	logger := &testutil.MockLogger{}
	metrics := &testutil.MockMetrics{}
	fm := NewFileManager(&testutil.MockCompressor{}, store, logger)
	s := NewScheduler(testConfig(path), logger, fm, metrics)

	require.NoError(t, s.Persist())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"visit_count":"7"`)
	assert.Equal(t, 1, metrics.PersistenceObserved)
}

func TestScheduler_Persist_ErrorIsLogged(t *testing.T) {
	logger := &testutil.MockLogger{}
	fm := NewFileManager(&testutil.MockCompressor{}, storage.NewMemoryStore(), logger)
	s := NewScheduler(testConfig("/nonexistent/dir/file.dat"), logger, fm, &testutil.MockMetrics{})

	assert.Error(t, s.Persist())
	assert.Equal(t, 1, logger.Count("error"))
}

func TestScheduler_InitSavesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.dat")
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "k", []byte("v")))

	logger := &testutil.MockLogger{}
	fm := NewFileManager(&testutil.MockCompressor{}, store, logger)
	s := NewScheduler(testConfig(path), logger, fm, &testutil.MockMetrics{})

	s.Init()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_StopWithoutInit(t *testing.T) {
	fm := NewFileManager(&testutil.MockCompressor{}, storage.NewMemoryStore(), &testutil.MockLogger{})
	s := NewScheduler(testConfig(""), &testutil.MockLogger{}, fm, &testutil.MockMetrics{})
	assert.NotPanics(t, s.Stop)
}
