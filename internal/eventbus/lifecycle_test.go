package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublisher_NilClientIsNoOp(t *testing.T) {
	var p *Publisher
	p.Publish(context.Background(), LifecycleEvent{CommandID: "x"}) // must not panic
}

func TestLifecycleConsumer_TalliesEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	pub := NewPublisher(client)
	pub.Publish(ctx, LifecycleEvent{CommandID: "a", Serial: "A01", State: "sent", Timestamp: 1})
	pub.Publish(ctx, LifecycleEvent{CommandID: "b", Serial: "A01", State: "sent", Timestamp: 2})
	pub.Publish(ctx, LifecycleEvent{CommandID: "a", Serial: "A01", State: "completed", Timestamp: 3})

	consumer := NewLifecycleConsumer(client, zap.NewNop(), "diag", "worker-1", 10)
	require.NoError(t, EnsureGroup(ctx, client, LifecycleStream, "diag"))
	require.NoError(t, consumer.consumeOnce(ctx))

	counts := consumer.Counts()
	require.Equal(t, int64(2), counts["sent"])
	require.Equal(t, int64(1), counts["completed"])
}

func TestLifecycleConsumer_Run_StopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	consumer := NewLifecycleConsumer(client, zap.NewNop(), "diag", "worker-1", 10)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := consumer.Run(ctx)
	require.NoError(t, err)
}
