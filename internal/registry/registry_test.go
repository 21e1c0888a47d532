package registry

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/config"
	"github.com/daniel-mekuria/zk-server/internal/domain"
)

func testConfig() config.RegistryConfig {
	return config.RegistryConfig{ActiveWindow: 10 * time.Minute}
}

type fakeTerminalRepo struct {
	rows map[string]domain.Terminal
}

func newFakeTerminalRepo() *fakeTerminalRepo {
	return &fakeTerminalRepo{rows: map[string]domain.Terminal{}}
}

func (f *fakeTerminalRepo) Upsert(ctx context.Context, t domain.Terminal) error {
	f.rows[t.Serial] = t
	return nil
}

func (f *fakeTerminalRepo) Get(ctx context.Context, serial string) (*domain.Terminal, error) {
	t, ok := f.rows[serial]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTerminalRepo) ListActive(ctx context.Context, since time.Time) ([]domain.Terminal, error) {
	var out []domain.Terminal
	for _, t := range f.rows {
		if !t.LastSeen.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTerminalRepo) Delete(ctx context.Context, serial string) error {
	delete(f.rows, serial)
	return nil
}

type fakeSyncLogRepo struct {
	entries []domain.SyncLogEntry
}

func (f *fakeSyncLogRepo) Append(ctx context.Context, e domain.SyncLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func TestParseInitOptions(t *testing.T) {
	got := ParseInitOptions("language=69,pushver=2.4.1")
	if got["language"] != "69" || got["pushver"] != "2.4.1" {
		t.Errorf("unexpected parse: %+v", got)
	}
}

func TestParseInitOptions_Empty(t *testing.T) {
	got := ParseInitOptions("")
	if len(got) != 0 {
		t.Errorf("expected empty map, got %+v", got)
	}
}

func TestRegisterOrUpdate_CreatesOnFirstContact(t *testing.T) {
	repo := newFakeTerminalRepo()
	reg := New(repo, &fakeSyncLogRepo{}, nil, testConfig(), zap.NewNop())

	term, err := reg.RegisterOrUpdate(context.Background(), "A01", "2.4.1", "69")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term.Serial != "A01" || term.ProtoVersion != "2.4.1" {
		t.Errorf("unexpected terminal: %+v", term)
	}
}

func TestRegisterOrUpdate_PreservesSharedKeyAndOptionsOnSubsequentCalls(t *testing.T) {
	repo := newFakeTerminalRepo()
	repo.rows["A01"] = domain.Terminal{
		Serial:    "A01",
		SharedKey: "existingkey",
		Options:   map[string]string{"BIODATAStamp": "1000"},
	}
	reg := New(repo, &fakeSyncLogRepo{}, nil, testConfig(), zap.NewNop())

	term, err := reg.RegisterOrUpdate(context.Background(), "A01", "2.4.1", "69")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term.SharedKey != "existingkey" {
		t.Errorf("expected shared key preserved, got %q", term.SharedKey)
	}
	if term.Options["BIODATAStamp"] != "1000" {
		t.Errorf("expected options preserved, got %+v", term.Options)
	}
}

func TestActivePeers_ExcludesSource(t *testing.T) {
	repo := newFakeTerminalRepo()
	now := time.Now()
	repo.rows["A01"] = domain.Terminal{Serial: "A01", LastSeen: now}
	repo.rows["A02"] = domain.Terminal{Serial: "A02", LastSeen: now}

	reg := New(repo, &fakeSyncLogRepo{}, nil, testConfig(), zap.NewNop())
	peers, err := reg.ActivePeers(context.Background(), "A01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(peers) != 1 || peers[0].Serial != "A02" {
		t.Errorf("unexpected peers: %+v", peers)
	}
}

func TestUpdateFromInfo_ParsesPositionalFields(t *testing.T) {
	repo := newFakeTerminalRepo()
	repo.rows["A01"] = domain.Terminal{Serial: "A01"}

	reg := New(repo, &fakeSyncLogRepo{}, nil, testConfig(), zap.NewNop())
	if err := reg.UpdateFromInfo(context.Background(), "A01", "6.60,ZKFinger10,ZKFace7.0,192.168.1.5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := repo.Get(context.Background(), "A01")
	if got.Firmware != "6.60" || got.FPAlgorithm != "ZKFinger10" || got.FaceAlgorithm != "ZKFace7.0" || got.IP != "192.168.1.5" {
		t.Errorf("unexpected terminal after info update: %+v", got)
	}
}

func TestRotateSharedKey_AppendsAuditRow(t *testing.T) {
	repo := newFakeTerminalRepo()
	repo.rows["A01"] = domain.Terminal{Serial: "A01"}
	syncLog := &fakeSyncLogRepo{}

	reg := New(repo, syncLog, nil, testConfig(), zap.NewNop())
	if err := reg.RotateSharedKey(context.Background(), "A01", "newkey"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := repo.Get(context.Background(), "A01")
	if got.SharedKey != "newkey" {
		t.Errorf("expected shared key updated, got %q", got.SharedKey)
	}
	if len(syncLog.entries) != 1 || syncLog.entries[0].Action != "keyrotate" {
		t.Errorf("expected one keyrotate audit row, got %+v", syncLog.entries)
	}
}

