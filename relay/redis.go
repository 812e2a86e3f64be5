package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends every message to a redis stream, capped at maxLen
// entries. Each entry has the fields store, request_id and payload (the
// message JSON).
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink connects lazily to addr.
func NewRedisSink(addr, password string, db int, stream string, maxLen int64) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisSink) Name() string { return "redis" }

// Ping checks the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal message: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"store":      msg.Store,
			"request_id": msg.RequestID,
			"payload":    string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
	}
	return s.client.XAdd(ctx, args).Err()
}

// Close closes the redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
