// Package redisstore keeps failure records in Redis.
//
// Record ids live in a sorted set scored by an insertion counter, and each
// record body is stored as JSON under its own key.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aponysus/smartretry/store"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "smartretry"

var _ store.Store = (*Store)(nil)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// Store implements store.Store using Redis.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	owned  bool
}

// Open parses cfg.URL, connects and pings the server.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := New(rdb, cfg.Prefix)
	s.owned = true
	return s, nil
}

// New wraps an existing client. The caller keeps ownership of rdb.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Close closes the client when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) idsKey() string {
	return fmt.Sprintf("%s:ids", s.prefix)
}

func (s *Store) seqKey() string {
	return fmt.Sprintf("%s:seq", s.prefix)
}

func (s *Store) recordKey(id string) string {
	return s.recordPrefix() + id
}

// Each mutation runs as one script so the index and the record keys never
// disagree, even when a call fails halfway.
var (
	// KEYS: record, seq, ids. ARGV: json, id.
	saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local seq = redis.call('INCR', KEYS[2])
redis.call('SET', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[3], seq, ARGV[2])
return 1
`)

	// KEYS: ids, record. ARGV: id.
	removeScript = redis.NewScript(`
local removed = redis.call('ZREM', KEYS[1], ARGV[1])
local deleted = redis.call('DEL', KEYS[2])
return removed + deleted
`)

	// KEYS: ids. ARGV: record key prefix.
	loadScript = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
local out = {}
for i, id in ipairs(ids) do
	local v = redis.call('GET', ARGV[1] .. id)
	if v then
		out[#out + 1] = v
	end
end
return out
`)

	// KEYS: ids. ARGV: record key prefix.
	clearScript = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
for i, id in ipairs(ids) do
	redis.call('DEL', ARGV[1] .. id)
end
redis.call('DEL', KEYS[1])
return #ids
`)
)

func (s *Store) recordPrefix() string {
	return s.prefix + ":record:"
}

// Save appends rec.
func (s *Store) Save(ctx context.Context, rec store.FailureRecord) error {
	if err := store.Validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}

	created, err := saveScript.Run(ctx, s.rdb,
		[]string{s.recordKey(rec.ID), s.seqKey(), s.idsKey()},
		data, rec.ID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to save failure record: %w", err)
	}
	if created == 0 {
		return store.ErrDuplicateID
	}
	return nil
}

// LoadAll returns every record, oldest first.
func (s *Store) LoadAll(ctx context.Context) ([]store.FailureRecord, error) {
	values, err := loadScript.Run(ctx, s.rdb, []string{s.idsKey()}, s.recordPrefix()).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load failure records: %w", err)
	}

	records := make([]store.FailureRecord, 0, len(values))
	for _, v := range values {
		var rec store.FailureRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failure record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (store.FailureRecord, bool, error) {
	data, err := s.rdb.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.FailureRecord{}, false, nil
	}
	if err != nil {
		return store.FailureRecord{}, false, fmt.Errorf("failed to get failure record: %w", err)
	}
	var rec store.FailureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return store.FailureRecord{}, false, fmt.Errorf("failed to unmarshal failure record: %w", err)
	}
	return rec, true, nil
}

// Remove deletes the record with id.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	n, err := removeScript.Run(ctx, s.rdb, []string{s.idsKey(), s.recordKey(id)}, id).Int()
	if err != nil {
		return false, fmt.Errorf("failed to remove failure record: %w", err)
	}
	return n > 0, nil
}

// Clear deletes every record and the index.
func (s *Store) Clear(ctx context.Context) error {
	if err := clearScript.Run(ctx, s.rdb, []string{s.idsKey()}, s.recordPrefix()).Err(); err != nil {
		return fmt.Errorf("failed to clear failure records: %w", err)
	}
	return nil
}

// Count returns the number of indexed records.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.rdb.ZCard(ctx, s.idsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}
