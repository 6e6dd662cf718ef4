package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mitre-shield/internal/config"
)

// RedisSessionStorage keeps sessions in Redis so they survive restarts
// and are shared across instances. Expiry is enforced by key TTL.
type RedisSessionStorage struct {
	client *redis.Client
	prefix string
}

var _ SessionStorage = (*RedisSessionStorage)(nil)

// NewRedisSessionStorage connects to Redis and verifies the connection.
func NewRedisSessionStorage(cfg config.RedisConfig) (*RedisSessionStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSessionStorage{client: client, prefix: "shield:session:"}, nil
}

func (r *RedisSessionStorage) key(token string) string {
	return r.prefix + token
}

func (r *RedisSessionStorage) Store(ctx context.Context, session *Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.client.Set(ctx, r.key(session.Token), data, ttl).Err()
}

func (r *RedisSessionStorage) Get(ctx context.Context, token string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

func (r *RedisSessionStorage) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.key(token)).Err()
}

func (r *RedisSessionStorage) UpdateActivity(ctx context.Context, token string, lastActive time.Time) error {
	session, err := r.Get(ctx, token)
	if err != nil {
		return err
	}
	session.LastActiveAt = lastActive
	return r.Store(ctx, session)
}

func (r *RedisSessionStorage) Count(ctx context.Context) (int, error) {
	var count int
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}

func (r *RedisSessionStorage) Close() error {
	return r.client.Close()
}
