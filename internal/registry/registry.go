// Package registry holds the terminal directory: registration, last-seen
// tracking, per-terminal capability options, and the active-set snapshot
// the fan-out synchronizer reads.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/cache"
	"github.com/daniel-mekuria/zk-server/internal/config"
	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/notify"
	"github.com/daniel-mekuria/zk-server/internal/repository"
)

// Registry is constructed once in main and injected wherever a component
// needs terminal state — no lazy, per-call construction.
type Registry struct {
	terminals repository.TerminalRepository
	syncLog   repository.SyncLogRepository
	options   *cache.OptionsCache
	notifier  *notify.Notifier
	cfg       config.RegistryConfig
	logger    *zap.Logger
}

func New(terminals repository.TerminalRepository, syncLog repository.SyncLogRepository, options *cache.OptionsCache, cfg config.RegistryConfig, logger *zap.Logger) *Registry {
	return &Registry{terminals: terminals, syncLog: syncLog, options: options, cfg: cfg, logger: logger}
}

// SetNotifier wires the optional MQTT notifier after construction, so
// main can choose not to configure one without complicating every other
// caller's New(...) call.
func (r *Registry) SetNotifier(n *notify.Notifier) {
	r.notifier = n
}

// RegisterOrUpdate is the idempotent touch-point of the init exchange: it
// creates the terminal row on first contact and refreshes last-seen (and
// any non-empty fields) on every subsequent call.
func (r *Registry) RegisterOrUpdate(ctx context.Context, serial, protoVersion, language string) (*domain.Terminal, error) {
	existing, err := r.terminals.Get(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("load terminal %s: %w", serial, err)
	}

	t := domain.Terminal{Serial: serial}
	if existing != nil {
		t = *existing
	}
	if protoVersion != "" {
		t.ProtoVersion = protoVersion
	}
	if language != "" {
		t.Language = language
	}
	t.LastSeen = time.Now()

	if err := r.terminals.Upsert(ctx, t); err != nil {
		return nil, fmt.Errorf("register terminal %s: %w", serial, err)
	}
	if existing == nil {
		r.notifier.TerminalStatus(serial, "active")
	}
	return r.terminals.Get(ctx, serial)
}

// Get returns the currently stored terminal row, or nil if serial has
// never registered.
func (r *Registry) Get(ctx context.Context, serial string) (*domain.Terminal, error) {
	t, err := r.terminals.Get(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("load terminal %s: %w", serial, err)
	}
	return t, nil
}

// Touch bumps last-seen without otherwise modifying the row — used by the
// poll and ping endpoints.
func (r *Registry) Touch(ctx context.Context, serial string) error {
	existing, err := r.terminals.Get(ctx, serial)
	if err != nil {
		return fmt.Errorf("touch terminal %s: %w", serial, err)
	}
	if existing == nil {
		existing = &domain.Terminal{Serial: serial}
	}
	existing.LastSeen = time.Now()
	return r.terminals.Upsert(ctx, *existing)
}

// ParseInitOptions parses the init "options=key1=value1,key2=value2,..."
// parameter into a map.
func ParseInitOptions(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1]
	}
	return out
}

// ApplyInitOptions parses and stores a terminal's init options string,
// refreshing the options cache.
func (r *Registry) ApplyInitOptions(ctx context.Context, serial, optionsStr string) error {
	opts := ParseInitOptions(optionsStr)
	existing, err := r.terminals.Get(ctx, serial)
	if err != nil {
		return fmt.Errorf("load terminal %s: %w", serial, err)
	}
	if existing == nil {
		existing = &domain.Terminal{Serial: serial}
	}
	if existing.Options == nil {
		existing.Options = map[string]string{}
	}
	for k, v := range opts {
		existing.Options[k] = v
	}
	existing.LastSeen = time.Now()
	if err := r.terminals.Upsert(ctx, *existing); err != nil {
		return fmt.Errorf("apply init options for %s: %w", serial, err)
	}
	if r.options != nil {
		if err := r.options.Set(ctx, serial, existing.Options); err != nil {
			r.logger.Warn("failed to refresh options cache", zap.String("serial", serial), zap.Error(err))
		}
	}
	return nil
}

// infoFields indexes the comma-separated INFO= parameter's positional
// fields as observed on poll: firmware, fp-algorithm, face-algorithm, ip.
var infoFields = []string{"firmware", "fp_algorithm", "face_algorithm", "ip"}

// UpdateFromInfo parses the poll-time INFO=<csv> parameter and refreshes
// the corresponding terminal fields.
func (r *Registry) UpdateFromInfo(ctx context.Context, serial, infoCSV string) error {
	if infoCSV == "" {
		return nil
	}
	parts := strings.Split(infoCSV, ",")

	existing, err := r.terminals.Get(ctx, serial)
	if err != nil {
		return fmt.Errorf("load terminal %s: %w", serial, err)
	}
	if existing == nil {
		existing = &domain.Terminal{Serial: serial}
	}
	for i, name := range infoFields {
		if i >= len(parts) || parts[i] == "" {
			continue
		}
		switch name {
		case "firmware":
			existing.Firmware = parts[i]
		case "fp_algorithm":
			existing.FPAlgorithm = parts[i]
		case "face_algorithm":
			existing.FaceAlgorithm = parts[i]
		case "ip":
			existing.IP = parts[i]
		}
	}
	existing.LastSeen = time.Now()
	if err := r.terminals.Upsert(ctx, *existing); err != nil {
		return fmt.Errorf("update terminal %s from info: %w", serial, err)
	}
	return nil
}

// ActiveSet returns every terminal whose last-seen falls within the
// configured active window.
func (r *Registry) ActiveSet(ctx context.Context) ([]domain.Terminal, error) {
	since := time.Now().Add(-r.cfg.ActiveWindow)
	terminals, err := r.terminals.ListActive(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list active terminals: %w", err)
	}
	return terminals, nil
}

// ActivePeers returns the active set excluding sourceSerial, the set the
// fan-out synchronizer targets.
func (r *Registry) ActivePeers(ctx context.Context, sourceSerial string) ([]domain.Terminal, error) {
	all, err := r.ActiveSet(ctx)
	if err != nil {
		return nil, err
	}
	peers := make([]domain.Terminal, 0, len(all))
	for _, t := range all {
		if t.Serial != sourceSerial {
			peers = append(peers, t)
		}
	}
	return peers, nil
}

// RotateSharedKey updates a terminal's shared key and records an audit
// row in the sync log — shared keys are security-sensitive enough to
// leave a trail distinct from ordinary record sync.
func (r *Registry) RotateSharedKey(ctx context.Context, serial, newKey string) error {
	existing, err := r.terminals.Get(ctx, serial)
	if err != nil {
		return fmt.Errorf("load terminal %s: %w", serial, err)
	}
	if existing == nil {
		return fmt.Errorf("terminal %s not found", serial)
	}
	existing.SharedKey = newKey
	if err := r.terminals.Upsert(ctx, *existing); err != nil {
		return fmt.Errorf("rotate shared key for %s: %w", serial, err)
	}
	if r.syncLog == nil {
		return nil
	}
	return r.syncLog.Append(ctx, domain.SyncLogEntry{
		SourceSN:   serial,
		TargetSN:   serial,
		RecordType: "TERMINAL",
		RecordKey:  serial,
		Action:     "keyrotate",
		Status:     "keyrotate",
	})
}

// Delete hard-deletes a terminal and invalidates its options cache entry.
// Cascading deletion of owning records is a store-gateway concern; callers
// invoke the repository directly for that.
func (r *Registry) Delete(ctx context.Context, serial string) error {
	if err := r.terminals.Delete(ctx, serial); err != nil {
		return fmt.Errorf("delete terminal %s: %w", serial, err)
	}
	if r.options != nil {
		if err := r.options.Invalidate(ctx, serial); err != nil {
			r.logger.Warn("failed to invalidate options cache", zap.String("serial", serial), zap.Error(err))
		}
	}
	r.notifier.TerminalStatus(serial, "inactive")
	return nil
}

// MultiBioDataSupportBitmask renders a per-terminal (or default) bitmask
// string for the init response's MultiBioDataSupport/MultiBioPhotoSupport
// keys.
func MultiBioDataSupportBitmask(opts map[string]string, key, def string) string {
	if v, ok := opts[key]; ok && v != "" {
		return v
	}
	return def
}

