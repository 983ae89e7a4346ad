package auth

import (
	"context"
	"errors"
	"fmt"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/storage"

	"github.com/redis/go-redis/v9"
)

// CacheTokenPrefix is the key prefix under which the account service caches
// opaque session tokens as auth_token:<token> -> user id.
const CacheTokenPrefix = "auth_token:"

// RedisTokenResolver accepts the account service's cached session tokens.
type RedisTokenResolver struct {
	Redis *redis.Client
	Users storage.UserStore
}

func NewRedisTokenResolver(rdb *redis.Client, users storage.UserStore) *RedisTokenResolver {
	return &RedisTokenResolver{Redis: rdb, Users: users}
}

func (r *RedisTokenResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	userID, err := r.Redis.Get(ctx, CacheTokenPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return Identity{}, fmt.Errorf("%w: unknown session token", apperr.ErrUnauthorized)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup session token: %w", err)
	}

	user, err := r.Users.GetUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Identity{}, fmt.Errorf("%w: token for unknown user", apperr.ErrUnauthorized)
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: user.ID, Role: user.Role}, nil
}
