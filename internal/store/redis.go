// Package store publishes revealed path points to Redis so other consumers
// can follow the track as it is replayed.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tdoa-tracker/internal/playback"
)

// PointMessage is the JSON payload pushed for every revealed point
type PointMessage struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Fault float64 `json:"fault"`
	RunID string  `json:"run_id,omitempty"`
}

// RedisSink appends each frame to a list and announces it on a channel of the
// same name
type RedisSink struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	runID  string
}

// NewRedisSink connects to Redis and verifies the connection
func NewRedisSink(ctx context.Context, addr string, db int, key string, ttl time.Duration, runID string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisSinkWithClient(client, key, ttl, runID), nil
}

// NewRedisSinkWithClient wraps an existing client
func NewRedisSinkWithClient(client *redis.Client, key string, ttl time.Duration, runID string) *RedisSink {
	return &RedisSink{client: client, key: key, ttl: ttl, runID: runID}
}

// Reset clears points left by a previous run
func (s *RedisSink) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", s.key, err)
	}
	return nil
}

// Publish implements playback.Sink
func (s *RedisSink) Publish(ctx context.Context, f playback.Frame) error {
	payload, err := EncodeFrame(f, s.runID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, payload)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	pipe.Publish(ctx, s.key, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.key, err)
	}
	return nil
}

// Close releases the connection pool
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// EncodeFrame renders the payload pushed for a frame
func EncodeFrame(f playback.Frame, runID string) ([]byte, error) {
	data, err := json.Marshal(PointMessage{
		Index: f.Index,
		X:     f.Point.X,
		Y:     f.Point.Y,
		Fault: f.Point.Fault,
		RunID: runID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode point %d: %w", f.Index, err)
	}
	return data, nil
}
