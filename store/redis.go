package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joshuarp/controller-sdk/config"
)

// OpenRedis connects to Redis using the redis.* config keys and wraps the
// client in a RedisStore.
func OpenRedis(cfg config.Provider) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetString("redis.addr"),
		Password: cfg.GetString("redis.password"),
		DB:       cfg.GetInt("redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: failed to ping redis: %w", err)
	}

	return NewRedisStore(client), nil
}

var _ Store = (*RedisStore)(nil)

// RedisStore persists records as JSON strings, one key per record plus a set
// per table tracking the member ids.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreOption configures the Redis store.
type RedisStoreOption func(*RedisStore)

// WithRedisPrefix sets a prefix for all Redis keys.
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed record store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "sdkstore",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RedisStore) recordKey(table, id string) string {
	return s.prefix + ":" + table + ":" + id
}

func (s *RedisStore) tableKey(table string) string {
	return s.prefix + ":" + table + ":ids"
}

func (s *RedisStore) Create(ctx context.Context, table, id string, fields map[string]interface{}) error {
	if s == nil || s.client == nil {
		return errors.New("store: redis store is not initialized")
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: failed to encode fields: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(table, id), payload, 0)
	pipe.SAdd(ctx, s.tableKey(table), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: failed to insert record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, table, id string) (Record, error) {
	if s == nil || s.client == nil {
		return Record{}, errors.New("store: redis store is not initialized")
	}

	payload, err := s.client.Get(ctx, s.recordKey(table, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("store: failed to query record: %w", err)
	}

	fields, err := decodeFields(payload)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Fields: fields}, nil
}

func (s *RedisStore) All(ctx context.Context, table string) ([]Record, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("store: redis store is not initialized")
	}

	ids, err := s.client.SMembers(ctx, s.tableKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: failed to list record ids: %w", err)
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, table, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Query filters client side; Redis holds the fields as opaque JSON.
func (s *RedisStore) Query(ctx context.Context, table string, match map[string]interface{}) ([]Record, error) {
	records, err := s.All(ctx, table)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if fieldsMatch(rec.Fields, match) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, table, id string, fields map[string]interface{}) error {
	if s == nil || s.client == nil {
		return errors.New("store: redis store is not initialized")
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: failed to encode fields: %w", err)
	}

	ok, err := s.client.SetXX(ctx, s.recordKey(table, id), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("store: failed to update record: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, table, id string) error {
	if s == nil || s.client == nil {
		return errors.New("store: redis store is not initialized")
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recordKey(table, id))
	pipe.SRem(ctx, s.tableKey(table), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: failed to delete record: %w", err)
	}
	return nil
}

func (s *RedisStore) RemoveIDs(ctx context.Context, table string, ids []string) error {
	if s == nil || s.client == nil {
		return errors.New("store: redis store is not initialized")
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ids))
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.recordKey(table, id))
		members = append(members, id)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, s.tableKey(table), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: failed to delete records: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearTable(ctx context.Context, table string) error {
	if s == nil || s.client == nil {
		return errors.New("store: redis store is not initialized")
	}

	ids, err := s.client.SMembers(ctx, s.tableKey(table)).Result()
	if err != nil {
		return fmt.Errorf("store: failed to list record ids: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.recordKey(table, id))
	}
	pipe.Del(ctx, s.tableKey(table))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: failed to clear table: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
