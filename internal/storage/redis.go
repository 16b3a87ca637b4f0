package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"surveysync/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage on Redis hashes:
// <namespace>:submissions maps id -> JSON fields and <namespace>:metadata maps key -> value.
// Attachments are not supported.
type RedisStorage struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(addr, password string, db int, namespace string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	if namespace == "" {
		namespace = "surveysync"
	}

	log.Printf("[RedisStorage] Connected to %s (DB:%d, prefix:%s)", addr, db, namespace)
	return &RedisStorage{client: client, keyPrefix: namespace}, nil
}

func (s *RedisStorage) submissionsKey() string {
	return s.keyPrefix + ":submissions"
}

func (s *RedisStorage) metadataKey() string {
	return s.keyPrefix + ":metadata"
}

// StoreSubmission writes the JSON-encoded fields into the submissions hash.
func (s *RedisStorage) StoreSubmission(ctx context.Context, id string, fields model.Fields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return s.fail("encode submission "+id, err)
	}
	if err := s.client.HSet(ctx, s.submissionsKey(), id, data).Err(); err != nil {
		return s.fail("store submission "+id, err)
	}
	return nil
}

// QuerySubmission checks the submissions hash for id.
func (s *RedisStorage) QuerySubmission(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.submissionsKey(), id).Result()
	if err != nil {
		return false, s.fail("query submission "+id, err)
	}
	return ok, nil
}

// StoreAttachment is not supported by Redis.
func (s *RedisStorage) StoreAttachment(ctx context.Context, submissionID, name string, data io.Reader) error {
	return ErrAttachmentsUnsupported
}

// AttachmentsSupported always returns false.
func (s *RedisStorage) AttachmentsSupported() bool { return false }

// GetMetadata reads a field of the metadata hash.
func (s *RedisStorage) GetMetadata(ctx context.Context, key model.MetadataKey) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.metadataKey(), string(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.fail("read metadata "+string(key), err)
	}
	return value, true, nil
}

// StoreMetadata writes a field of the metadata hash.
func (s *RedisStorage) StoreMetadata(ctx context.Context, key model.MetadataKey, value string) error {
	if err := s.client.HSet(ctx, s.metadataKey(), string(key), value).Err(); err != nil {
		return s.fail("store metadata "+string(key), err)
	}
	return nil
}

// SetDataTimezone records loc under the data timezone metadata key.
func (s *RedisStorage) SetDataTimezone(ctx context.Context, loc *time.Location) error {
	return s.StoreMetadata(ctx, model.MetadataDataTimezone, loc.String())
}

// GetSubmissions reads the whole submissions hash, ordered by id.
func (s *RedisStorage) GetSubmissions(ctx context.Context) ([]model.StoredSubmission, error) {
	all, err := s.client.HGetAll(ctx, s.submissionsKey()).Result()
	if err != nil {
		return nil, s.fail("list submissions", err)
	}

	out := make([]model.StoredSubmission, 0, len(all))
	for id, raw := range all {
		fields, err := decodeFields([]byte(raw))
		if err != nil {
			return nil, s.fail("decode submission "+id, err)
		}
		out = append(out, model.StoredSubmission{ID: id, Fields: fields})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetStats returns the submission count and Redis pool statistics.
func (s *RedisStorage) GetStats(ctx context.Context) (map[string]interface{}, error) {
	count, err := s.client.HLen(ctx, s.submissionsKey()).Result()
	if err != nil {
		return nil, s.fail("count submissions", err)
	}

	pool := s.client.PoolStats()
	return map[string]interface{}{
		"backend":           "redis",
		"total_submissions": count,
		"connections": map[string]interface{}{
			"total": pool.TotalConns,
			"idle":  pool.IdleConns,
		},
	}, nil
}

// Close closes the Redis client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func (s *RedisStorage) fail(op string, err error) error {
	return &model.StorageError{Backend: "redis", Op: op, Err: err}
}

// Ensure RedisStorage implements Storage
var _ Storage = (*RedisStorage)(nil)
