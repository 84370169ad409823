package publish

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "affidavit:artifact:"

// RedisOptions configures a RedisStore
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps artifacts in Redis hashes that expire after the TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and checks the connection
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Put writes the artifact and its expiry in one transaction
func (s *RedisStore) Put(ctx context.Context, a Artifact) error {
	key := redisKey(a.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"name":         a.Name,
			"content_type": a.ContentType,
			"created_at":   a.CreatedAt.UTC().Format(time.RFC3339Nano),
			"path":         a.Path,
			"url":          a.URL,
			"data":         a.Data,
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", a.ID, err)
	}
	return nil
}

// Get reads an artifact back
func (s *RedisStore) Get(ctx context.Context, id string) (Artifact, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(id)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(fields) == 0) {
		return Artifact{}, ErrNotFound
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to load artifact %s: %w", id, err)
	}

	created, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact %s has a bad timestamp: %w", id, err)
	}
	data := []byte(fields["data"])
	return Artifact{
		ID:          id,
		Name:        fields["name"],
		ContentType: fields["content_type"],
		Size:        len(data),
		CreatedAt:   created,
		Path:        fields["path"],
		URL:         fields["url"],
		Data:        data,
	}, nil
}

// TTL returns the remaining lifetime of an artifact
func (s *RedisStore) TTL(ctx context.Context, id string) (time.Duration, error) {
	return s.client.TTL(ctx, redisKey(id)).Result()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// String describes the store for server info
func (s *RedisStore) String() string {
	return "redis " + s.client.Options().Addr + "/" + strconv.Itoa(s.client.Options().DB)
}
