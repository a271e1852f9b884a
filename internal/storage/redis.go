package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisRetries = 16
	redisScanBatch      = 500
)

// RedisStore maps keys onto a namespaced redis keyspace. Update uses
// WATCH/MULTI/EXEC and retries when a watched key changes underneath it.
type RedisStore struct {
	rdb        *redis.Client
	namespace  string
	maxRetries int
}

func NewRedisStore(ctx context.Context, redisURL, namespace string, maxRetries int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewRedisStoreFromClient(rdb, namespace, maxRetries), nil
}

func NewRedisStoreFromClient(rdb *redis.Client, namespace string, maxRetries int) *RedisStore {
	if maxRetries <= 0 {
		maxRetries = defaultRedisRetries
	}
	return &RedisStore{rdb: rdb, namespace: namespace, maxRetries: maxRetries}
}

func (r *RedisStore) key(k string) string {
	return r.namespace + k
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisStore) ScanPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	match := escapeGlob(r.key(prefix)) + "*"
	out := make(map[string][]byte)

	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, redisScanBatch).Result()
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			vals, err := r.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, err
			}
			for i, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				out[strings.TrimPrefix(keys[i], r.namespace)] = []byte(s)
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (r *RedisStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	keys = uniqueKeys(keys)
	watched := make([]string, len(keys))
	for i, k := range keys {
		watched[i] = r.key(k)
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			tx := newBufferedTx(keys, func(key string) ([]byte, bool, error) {
				v, err := rtx.Get(ctx, r.key(key)).Bytes()
				if errors.Is(err, redis.Nil) {
					return nil, false, nil
				}
				if err != nil {
					return nil, false, err
				}
				return v, true, nil
			})
			if err := fn(tx); err != nil {
				return err
			}
			if tx.err != nil {
				return tx.err
			}
			if len(tx.order) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, k := range tx.order {
					pipe.Set(ctx, r.key(k), tx.writes[k], 0)
				}
				return nil
			})
			return err
		}, watched...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
