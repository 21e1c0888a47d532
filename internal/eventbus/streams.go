// Package eventbus publishes command-lifecycle events onto a Redis Stream
// and consumes them for diagnostics, independent of the command queue's
// own postgres-backed state machine.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamMessage is one decoded entry read back from a stream.
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

// PublishJSON marshals data and appends it to stream via XADD.
func PublishJSON(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// ReadGroup reads up to count pending messages for consumer in group,
// blocking briefly when the stream is empty.
func ReadGroup(ctx context.Context, client *redis.Client, stream, group, consumer string, count int64) ([]StreamMessage, error) {
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    5 * time.Second,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", stream, err)
	}

	var out []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			out = append(out, StreamMessage{ID: msg.ID, Values: msg.Values})
		}
	}
	return out, nil
}

// EnsureGroup creates the consumer group if it doesn't already exist,
// creating the stream itself first if necessary.
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreate(ctx, stream, group, "0").Err()
	if err == nil {
		return nil
	}
	if err.Error() == "BUSYGROUP Consumer Group name already exists" {
		return nil
	}

	msgID, createErr := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"init": "true"},
	}).Result()
	if createErr != nil {
		return fmt.Errorf("create stream %s: %w", stream, createErr)
	}
	client.XDel(ctx, stream, msgID)

	if err := client.XGroupCreate(ctx, stream, group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

func Ack(ctx context.Context, client *redis.Client, stream, group, id string) error {
	return client.XAck(ctx, stream, group, id).Err()
}
