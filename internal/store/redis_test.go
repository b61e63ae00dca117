package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"tdoa-tracker/internal/playback"
	"tdoa-tracker/internal/tdoa"
)

func TestEncodeFrame(t *testing.T) {
	f := playback.Frame{Index: 4, Point: tdoa.EstimatedPoint{X: 50, Y: 30, Fault: 0.7}}
	data, err := EncodeFrame(f, "run-1")
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	var msg PointMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if msg.Index != 4 || msg.X != 50 || msg.Y != 30 || msg.Fault != 0.7 || msg.RunID != "run-1" {
		t.Errorf("unexpected payload %+v", msg)
	}
}

func TestPublishReportsConnectionErrors(t *testing.T) {
	// nothing listens on port 1
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	sink := NewRedisSinkWithClient(client, "tdoa:test", time.Minute, "")
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := sink.Publish(ctx, playback.Frame{Point: tdoa.EstimatedPoint{X: 1, Y: 2}})
	if err == nil {
		t.Fatal("Expected error publishing without a server")
	}
}

func TestNewRedisSinkFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := NewRedisSink(ctx, "127.0.0.1:1", 0, "tdoa:test", 0, ""); err == nil {
		t.Fatal("Expected ping failure")
	}
}
