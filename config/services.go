package config

import (
	"context"
	"fmt"
	"solar-workflow-api/storage"
	"strings"

	"github.com/redis/go-redis/v9"
)

// OpenObjectStorage opens the object store selected by STORAGE_BACKEND.
func OpenObjectStorage(ctx context.Context, cfg *Config) (storage.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "gcs":
		gcs, err := storage.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
		if err != nil {
			return nil, err
		}
		return gcs, nil
	default:
		local, err := storage.NewLocal(cfg.StorageDir, cfg.PublicBaseURL+"/api/v1/files", cfg.StorageSecret)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
}

// NewRedisClient connects to REDIS_ADDRESS. It returns nil when no address is
// configured so callers fall back to running without locks.
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisAddress) == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddress, err)
	}
	return rdb, nil
}
