package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/wire"
)

type fakePeerLister struct {
	peers []domain.Terminal
}

func (f *fakePeerLister) ActivePeers(ctx context.Context, sourceSerial string) ([]domain.Terminal, error) {
	return f.peers, nil
}

type fakeEnqueuer struct {
	calls []enqueueCall
}

type enqueueCall struct {
	serial  string
	payload string
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, serial string, category domain.CommandCategory, payload string, idempotent bool) (string, error) {
	f.calls = append(f.calls, enqueueCall{serial: serial, payload: payload})
	return "cmd-id", nil
}

type fakeSyncLog struct {
	entries []domain.SyncLogEntry
}

func (f *fakeSyncLog) Append(ctx context.Context, e domain.SyncLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func TestFan_EnqueuesOnEveryActivePeer(t *testing.T) {
	peers := &fakePeerLister{peers: []domain.Terminal{{Serial: "A02"}, {Serial: "A03"}}}
	enq := &fakeEnqueuer{}
	syncLog := &fakeSyncLog{}
	s := New(peers, enq, syncLog, false, zap.NewNop())

	records := []wire.Record{
		{Tag: wire.TagUser, User: &wire.UserRecord{PIN: "1", Name: "Alice"}},
	}
	n, err := s.Fan(context.Background(), "A01", records)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, enq.calls, 2)
	require.Equal(t, "A02", enq.calls[0].serial)
	require.Equal(t, "A03", enq.calls[1].serial)
	require.Len(t, syncLog.entries, 2)
	require.Equal(t, "queued", syncLog.entries[0].Status)
}

func TestFan_PreservesPerPeerRecordOrder(t *testing.T) {
	peers := &fakePeerLister{peers: []domain.Terminal{{Serial: "A02"}}}
	enq := &fakeEnqueuer{}
	s := New(peers, enq, &fakeSyncLog{}, false, zap.NewNop())

	records := []wire.Record{
		{Tag: wire.TagUser, User: &wire.UserRecord{PIN: "1", Name: "Alice"}},
		{Tag: wire.TagUser, User: &wire.UserRecord{PIN: "2", Name: "Bob"}},
	}
	_, err := s.Fan(context.Background(), "A01", records)
	require.NoError(t, err)
	require.Len(t, enq.calls, 2)
	require.Contains(t, enq.calls[0].payload, "PIN=1")
	require.Contains(t, enq.calls[1].payload, "PIN=2")
}

func TestFan_InvalidRecordSkippedNotEnqueued(t *testing.T) {
	peers := &fakePeerLister{peers: []domain.Terminal{{Serial: "A02"}}}
	enq := &fakeEnqueuer{}
	syncLog := &fakeSyncLog{}
	s := New(peers, enq, syncLog, false, zap.NewNop())

	records := []wire.Record{
		{Tag: wire.TagFP, FP: &wire.FPRecord{PIN: "1", FID: 99, Template: "bad template"}},
	}
	n, err := s.Fan(context.Background(), "A01", records)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, enq.calls)
	require.Len(t, syncLog.entries, 1)
	require.Equal(t, "skipped", syncLog.entries[0].Status)
}

func TestFan_NoActivePeersShortCircuits(t *testing.T) {
	peers := &fakePeerLister{peers: nil}
	enq := &fakeEnqueuer{}
	s := New(peers, enq, &fakeSyncLog{}, false, zap.NewNop())

	records := []wire.Record{{Tag: wire.TagUser, User: &wire.UserRecord{PIN: "1"}}}
	n, err := s.Fan(context.Background(), "A01", records)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, enq.calls)
}
