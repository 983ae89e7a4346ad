package presence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:online:"

// RedisRegistry shares presence between server instances. Keys carry no TTL:
// an entry lives until the owning session clears it.
type RedisRegistry struct {
	Redis *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{Redis: rdb}
}

func key(userID string) string { return keyPrefix + userID }

func (r *RedisRegistry) SetOnline(ctx context.Context, userID string) error {
	if err := r.Redis.Set(ctx, key(userID), "1", 0).Err(); err != nil {
		return fmt.Errorf("set online %s: %w", userID, err)
	}
	return nil
}

func (r *RedisRegistry) ClearOnline(ctx context.Context, userID string) error {
	if err := r.Redis.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("clear online %s: %w", userID, err)
	}
	return nil
}

func (r *RedisRegistry) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := r.Redis.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check online %s: %w", userID, err)
	}
	return n == 1, nil
}

// OnlineUsers walks the key space with SCAN so large registries don't block Redis.
func (r *RedisRegistry) OnlineUsers(ctx context.Context) ([]string, error) {
	var out []string
	iter := r.Redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan online users: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
