package providers

import (
	"context"
	"fmt"
	"time"

	"moriportal/internal/storage"
	"moriportal/internal/structures"
)

func NewStoreProvider(conf *structures.Config, logger Logger) (storage.Store, error) {
	switch conf.Store.Driver {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		s, err := storage.NewRedisStore(ctx, conf.Store.RedisURL, conf.Store.RedisPrefix, conf.Store.MaxTxRetries)
		if err != nil {
			return nil, err
		}
		logger.Infof(TypeStore, "Using redis store (namespace %q)", conf.Store.RedisPrefix)
		return s, nil
	case "sqlite":
		s, err := storage.NewSQLiteStore(conf.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", conf.Store.SQLitePath, err)
		}
		logger.Infof(TypeStore, "Using sqlite store at %s", conf.Store.SQLitePath)
		return s, nil
	case "memory", "":
		logger.Infof(TypeStore, "Using in-memory store, snapshots at %s", conf.Persistence.FilePath)
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", conf.Store.Driver)
	}
}
