package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("Connected to Redis at %s (db %d)", addr, db)
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	log.Println("Redis connection closed.")
	return nil
}

// GetJSON loads key into dst. The boolean is false on a cache miss.
func GetJSON(ctx context.Context, rdb *redis.Client, key string, dst any) (bool, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key '%s': %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache key '%s': %w", key, err)
	}
	return true, nil
}

// Generation returns the current value of a generation counter; a missing counter is 0.
func Generation(ctx context.Context, rdb *redis.Client, genKey string) (int64, error) {
	gen, err := rdb.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read generation '%s': %w", genKey, err)
	}
	return gen, nil
}

// SetJSONAtGeneration stores v under key only while genKey still holds gen.
// The value was computed from a read that started at gen; if Invalidate ran
// since, the value may be stale and is dropped. The boolean reports whether
// it was stored.
func SetJSONAtGeneration(ctx context.Context, rdb *redis.Client, key, genKey string, gen int64, v any, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode cache key '%s': %w", key, err)
	}
	stored := false
	err = rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to write cache key '%s': %w", key, err)
	}
	return stored, nil
}

// Invalidate drops key and advances genKey in one transaction, so readers that
// started earlier cannot repopulate key with what they loaded.
func Invalidate(ctx context.Context, rdb *redis.Client, key, genKey string) error {
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate cache key '%s': %w", key, err)
	}
	return nil
}
