package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	valueKeyPrefix = "v:"
	indexKeyPrefix = "idx:"
	batchKey       = "flag:batch"
)

// RedisRegistry is the distributed Registry backend, implementing the
// same prefix+key/index contract as MemoryRegistry over a shared Redis
// instance so multiple core instances observe one fleet view.
//
// Index add/remove is deliberately NOT wrapped in a transaction here:
// §5 of the external contract mandates the read-old -> remove-old ->
// write-new -> add-new ordering live in the monitor, with an observer
// of an intermediate state seeing old∪new, never empty. Adding
// scripted atomicity to AddIndex/RemoveIndex themselves would hide
// that ordering requirement instead of enforcing it.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Get(ctx context.Context, prefix, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, valueKeyPrefix+prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("registry get %s%s: %w", prefix, key, err)
	}

	return v, true, nil
}

func (r *RedisRegistry) Set(ctx context.Context, prefix, key, value string) error {
	if err := r.client.Set(ctx, valueKeyPrefix+prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("registry set %s%s: %w", prefix, key, err)
	}

	return nil
}

func (r *RedisRegistry) Delete(ctx context.Context, prefix, key string) error {
	if err := r.client.Del(ctx, valueKeyPrefix+prefix+key).Err(); err != nil {
		return fmt.Errorf("registry delete %s%s: %w", prefix, key, err)
	}

	return nil
}

func (r *RedisRegistry) AddIndex(ctx context.Context, path []string, value string, _ int) error {
	key := indexKeyPrefix + IndexPath(path...)
	if err := r.client.SAdd(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("registry add_index %s: %w", key, err)
	}

	return nil
}

func (r *RedisRegistry) RemoveIndex(ctx context.Context, path []string, value string, _ int) error {
	key := indexKeyPrefix + IndexPath(path...)
	if err := r.client.SRem(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("registry remove_index %s: %w", key, err)
	}

	return nil
}

func (r *RedisRegistry) GetIndex(ctx context.Context, path []string, _ int) (map[string]struct{}, error) {
	key := indexKeyPrefix + IndexPath(path...)

	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("registry get_index %s: %w", key, err)
	}

	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}

	return out, nil
}

// GetIndexPrefix unions every index set whose path shares the given
// prefix segments, the Redis analogue of scanning a sub-path — used
// by bucketed "capacity >= X" range queries.
func (r *RedisRegistry) GetIndexPrefix(ctx context.Context, pathPrefix []string) (map[string]struct{}, error) {
	pattern := indexKeyPrefix + IndexPath(pathPrefix...) + "*"

	out := make(map[string]struct{})

	iter := r.client.Scan(ctx, 0, pattern, 256).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, indexKeyPrefix) {
			continue
		}

		members, err := r.client.SMembers(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("registry get_index_prefix %s: %w", key, err)
		}

		for _, m := range members {
			out[m] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("registry get_index_prefix scan %s: %w", pattern, err)
	}

	return out, nil
}

func (r *RedisRegistry) Batch(ctx context.Context) (bool, error) {
	v, err := r.client.Get(ctx, batchKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("registry batch: %w", err)
	}

	return v == "1", nil
}

func (r *RedisRegistry) SetBatch(ctx context.Context, on bool) error {
	v := "0"
	if on {
		v = "1"
	}

	if err := r.client.Set(ctx, batchKey, v, 0).Err(); err != nil {
		return fmt.Errorf("registry set_batch: %w", err)
	}

	return nil
}
