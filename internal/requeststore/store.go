// Package requeststore persists the outcome of asynchronously processed
// reservation intents, keyed by request id. Records are TTL-bound: an
// expired record means "unknown", never "failed".
package requeststore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "reservation-request:"

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Record is the cached outcome of one reservation intent. Written once
// by the consumer, read many times by the gateway.
type Record struct {
	RequestID      string    `json:"request_id"`
	Status         string    `json:"status"`
	GroupCode      string    `json:"group_code,omitempty"`
	ReservationIDs []string  `json:"reservation_ids,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	ErrorDetail    string    `json:"error_detail,omitempty"`
	SeatIDs        []string  `json:"seat_ids,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

func (r *Record) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Store is what the consumer and gateway need from the cache.
type Store interface {
	Get(ctx context.Context, requestID string) (*Record, bool, error)
	Put(ctx context.Context, record *Record) error
}

// Client is the slice of the Redis API the store needs. *redis.Client
// satisfies it.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisStore struct {
	rdb Client
	ttl time.Duration
}

func NewRedisStore(rdb Client, ttl time.Duration) Store {
	return &redisStore{
		rdb: rdb,
		ttl: ttl,
	}
}

func (s *redisStore) Get(ctx context.Context, requestID string) (*Record, bool, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+requestID).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("request record store unavailable: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, false, fmt.Errorf("failed to decode request record %s: %w", requestID, err)
	}
	return &record, true, nil
}

func (s *redisStore) Put(ctx context.Context, record *Record) error {
	if record.RequestID == "" {
		return fmt.Errorf("request record requires a request id")
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode request record %s: %w", record.RequestID, err)
	}

	if err := s.rdb.Set(ctx, keyPrefix+record.RequestID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("request record store unavailable: %w", err)
	}
	return nil
}
