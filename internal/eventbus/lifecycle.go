package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const LifecycleStream = "zk:command-lifecycle"

// LifecycleEvent is published on every command-queue state transition. It
// is purely observational — the postgres commands table remains the only
// authoritative source of queue state.
type LifecycleEvent struct {
	CommandID string `json:"command_id"`
	Serial    string `json:"serial"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher appends LifecycleEvents to the stream. A nil client makes
// Publish a no-op, so callers can wire it unconditionally.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, e LifecycleEvent) {
	if p == nil || p.client == nil {
		return
	}
	if _, err := PublishJSON(ctx, p.client, LifecycleStream, e); err != nil {
		// Diagnostics stream only; never fail the caller's transaction over this.
		return
	}
}

// LifecycleConsumer drains LifecycleStream for diagnostics, tallying
// transitions per state across all terminals. The operator diagnostics
// endpoint surfaces the tally via Counts.
type LifecycleConsumer struct {
	client       *redis.Client
	logger       *zap.Logger
	group        string
	consumerName string
	batchSize    int64

	mu     sync.Mutex
	counts map[string]int64
}

func NewLifecycleConsumer(client *redis.Client, logger *zap.Logger, group, consumerName string, batchSize int64) *LifecycleConsumer {
	return &LifecycleConsumer{
		client:       client,
		logger:       logger,
		group:        group,
		consumerName: consumerName,
		batchSize:    batchSize,
		counts:       make(map[string]int64),
	}
}

// Counts returns a snapshot of transitions tallied so far, keyed by state.
func (c *LifecycleConsumer) Counts() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Run blocks, consuming LifecycleStream until ctx is cancelled. Transient
// read failures back off exponentially rather than spinning.
func (c *LifecycleConsumer) Run(ctx context.Context) error {
	if err := EnsureGroup(ctx, c.client, LifecycleStream, c.group); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.consumeOnce(ctx); err != nil {
			c.logger.Warn("lifecycle consumer read failed", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

func (c *LifecycleConsumer) consumeOnce(ctx context.Context) error {
	messages, err := ReadGroup(ctx, c.client, LifecycleStream, c.group, c.consumerName, c.batchSize)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		raw, _ := msg.Values["data"].(string)
		var e LifecycleEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			c.logger.Warn("lifecycle consumer dropped unparseable event", zap.String("id", msg.ID), zap.Error(err))
			Ack(ctx, c.client, LifecycleStream, c.group, msg.ID)
			continue
		}

		c.mu.Lock()
		c.counts[e.State]++
		c.mu.Unlock()

		if err := Ack(ctx, c.client, LifecycleStream, c.group, msg.ID); err != nil {
			c.logger.Warn("lifecycle consumer ack failed", zap.String("id", msg.ID), zap.Error(err))
		}
	}
	return nil
}
