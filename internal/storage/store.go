package storage

import (
	"context"
	"errors"
)

var ErrConflict = errors.New("storage: transaction retries exhausted")

// Store is the key-value backend behind the engagement counters.
// Update is the only multi-key primitive: fn observes and writes the listed
// keys as one serialized unit, and its writes are committed only when fn
// returns nil.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	ScanPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	Update(ctx context.Context, keys []string, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the view of the locked keys handed to an Update callback.
type Tx interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte)
}

// Snapshotter is implemented by backends whose durability comes from
// periodic snapshots rather than the backend itself.
type Snapshotter interface {
	Snapshot() map[string][]byte
	Restore(entries map[string][]byte)
	Len() int
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// bufferedTx collects writes until the callback returns.
type bufferedTx struct {
	allowed map[string]struct{}
	read    func(key string) ([]byte, bool, error)
	writes  map[string][]byte
	order   []string
	err     error
}

func newBufferedTx(keys []string, read func(key string) ([]byte, bool, error)) *bufferedTx {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	return &bufferedTx{allowed: allowed, read: read, writes: make(map[string][]byte)}
}

var errKeyNotLocked = errors.New("storage: key not declared in update")

func (t *bufferedTx) Get(key string) ([]byte, bool, error) {
	if _, ok := t.allowed[key]; !ok {
		return nil, false, errKeyNotLocked
	}
	if v, ok := t.writes[key]; ok {
		return v, true, nil
	}
	return t.read(key)
}

func (t *bufferedTx) Set(key string, value []byte) {
	if _, ok := t.allowed[key]; !ok {
		t.err = errKeyNotLocked
		return
	}
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = append([]byte(nil), value...)
}
