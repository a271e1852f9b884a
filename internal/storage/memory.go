package storage

import (
	"context"
	"hash/fnv"
	"slices"
	"strings"
	"sync"
)

const memoryStripes = 256

// MemoryStore keeps all entries in process. Keys hash onto a fixed set of
// stripe mutexes; Update locks every stripe its keys touch in ascending order.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	stripes [memoryStripes]sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func stripeOf(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % memoryStripes)
}

func (m *MemoryStore) lockKeys(keys []string) func() {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, stripeOf(k))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)
	for _, i := range idx {
		m.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			m.stripes[idx[j]].Unlock()
		}
	}
}

func (m *MemoryStore) read(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	return m.read(key)
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	unlock := m.lockKeys([]string{key})
	defer unlock()

	m.mu.Lock()
	m.data[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ScanPrefix(_ context.Context, prefix string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	keys = uniqueKeys(keys)
	unlock := m.lockKeys(keys)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newBufferedTx(keys, m.read)
	if err := fn(tx); err != nil {
		return err
	}
	if tx.err != nil {
		return tx.err
	}

	m.mu.Lock()
	for _, k := range tx.order {
		m.data[k] = tx.writes[k]
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (m *MemoryStore) Restore(entries map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string][]byte, len(entries))
	for k, v := range entries {
		m.data[k] = append([]byte(nil), v...)
	}
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
