package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/formatter"
	"github.com/daniel-mekuria/zk-server/internal/queue"
	"github.com/daniel-mekuria/zk-server/internal/registry"
	"github.com/daniel-mekuria/zk-server/internal/repository"
)

// PeerEnqueuer is the narrow registry+queue boundary admin-driven pushes
// fan out over: every active terminal other than the one that originated
// the change (there is none here — an operator edit has no source serial).
type PeerEnqueuer interface {
	ActiveSet(ctx context.Context) ([]domain.Terminal, error)
	Enqueue(ctx context.Context, serial string, category domain.CommandCategory, payload string, idempotent bool) (string, error)
}

// registryQueue adapts *registry.Registry and *queue.Queue to PeerEnqueuer.
type registryQueue struct {
	reg *registry.Registry
	q   *queue.Queue
}

func (rq registryQueue) ActiveSet(ctx context.Context) ([]domain.Terminal, error) {
	return rq.reg.ActiveSet(ctx)
}

func (rq registryQueue) Enqueue(ctx context.Context, serial string, category domain.CommandCategory, payload string, idempotent bool) (string, error) {
	return rq.q.Enqueue(ctx, serial, category, payload, idempotent)
}

// AdminHandler implements the operator surface: direct user/template
// writes and deletes that cascade to every active terminal, plus a
// per-terminal queue diagnostics endpoint.
type AdminHandler struct {
	users      repository.UserRepository
	biometrics repository.BiometricRepository
	syncLog    repository.SyncLogRepository
	peers      PeerEnqueuer
	queue      *queue.Queue
	lifecycle  LifecycleCounter
	logger     *zap.Logger
}

// LifecycleCounter is the rolling state-transition counter the diagnostics
// endpoint surfaces. internal/eventbus.LifecycleConsumer implements it.
type LifecycleCounter interface {
	Counts() map[string]int64
}

func NewAdminHandler(
	users repository.UserRepository,
	biometrics repository.BiometricRepository,
	syncLog repository.SyncLogRepository,
	reg *registry.Registry,
	q *queue.Queue,
	lifecycle LifecycleCounter,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:      users,
		biometrics: biometrics,
		syncLog:    syncLog,
		peers:      registryQueue{reg: reg, q: q},
		queue:      q,
		lifecycle:  lifecycle,
		logger:     logger,
	}
}

type userPushRequest struct {
	PIN        string `json:"pin"`
	Name       string `json:"name"`
	Privilege  int    `json:"privilege"`
	Password   string `json:"password"`
	Card       string `json:"card"`
	GroupID    string `json:"group_id"`
	TimeZone   string `json:"time_zone"`
	VerifyMode int    `json:"verify_mode"`
	ViceCard   string `json:"vice_card"`
}

// PutUser stores an operator-authored user and pushes it to every active
// terminal.
func (h *AdminHandler) PutUser(w http.ResponseWriter, req *http.Request) {
	var in userPushRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.PIN == "" {
		http.Error(w, "pin is required", http.StatusBadRequest)
		return
	}
	if in.TimeZone == "" {
		in.TimeZone = domain.DefaultTimeZone
	}
	if in.VerifyMode == 0 {
		in.VerifyMode = domain.DefaultVerifyMode
	}

	u := domain.User{
		PIN: in.PIN, Name: in.Name, Privilege: in.Privilege, Password: in.Password,
		Card: in.Card, GroupID: in.GroupID, TimeZone: in.TimeZone,
		VerifyMode: in.VerifyMode, ViceCard: in.ViceCard, SourceSN: "admin",
	}
	if err := formatter.ValidateUser(u); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.users.Upsert(req.Context(), u); err != nil {
		h.logger.Error("store admin user push failed", zap.String("pin", u.PIN), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	cat, payload, idem, err := formatter.PutUser(u)
	if err != nil {
		h.logger.Error("format admin user push failed", zap.String("pin", u.PIN), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.pushToAllPeers(req.Context(), "USERINFO", u.PIN, cat, payload, idem)
	w.WriteHeader(http.StatusAccepted)
}

// DeleteUser removes an operator-authored user and cascades the delete to
// every active terminal.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, req *http.Request) {
	pin := req.URL.Query().Get("pin")
	if pin == "" {
		http.Error(w, "pin is required", http.StatusBadRequest)
		return
	}
	if err := h.users.Delete(req.Context(), pin); err != nil {
		h.logger.Error("delete admin user failed", zap.String("pin", pin), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	cat, payload, idem, err := formatter.DeleteUser(pin)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.pushToAllPeers(req.Context(), "USERINFO", pin, cat, payload, idem)
	w.WriteHeader(http.StatusAccepted)
}

type templatePushRequest struct {
	PIN      string `json:"pin"`
	Type     int    `json:"type"`
	Slot     int    `json:"slot"`
	Index    int    `json:"index"`
	Valid    bool   `json:"valid"`
	Duress   bool   `json:"duress"`
	MajorVer string `json:"major_ver"`
	MinorVer string `json:"minor_ver"`
	Format   string `json:"format"`
	Template string `json:"template"`
}

// PutTemplate stores an operator-authored biometric template and pushes it
// to every active terminal.
func (h *AdminHandler) PutTemplate(w http.ResponseWriter, req *http.Request) {
	var in templatePushRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	t := domain.BiometricTemplate{
		PIN: in.PIN, Type: domain.BiometricType(in.Type), Slot: in.Slot, Index: in.Index,
		Valid: in.Valid, Duress: in.Duress, MajorVer: in.MajorVer, MinorVer: in.MinorVer,
		Format: in.Format, Template: in.Template, SourceSN: "admin",
	}
	if err := formatter.ValidateBiometric(t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.biometrics.Upsert(req.Context(), t); err != nil {
		h.logger.Error("store admin template push failed", zap.String("pin", t.PIN), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	cat, payload, idem, err := formatter.PutBiometric(t)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.pushToAllPeers(req.Context(), "BIODATA", t.PIN, cat, payload, idem)
	w.WriteHeader(http.StatusAccepted)
}

// DeleteTemplate removes an operator-authored biometric template and
// cascades the delete to every active terminal.
func (h *AdminHandler) DeleteTemplate(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	pin := q.Get("pin")
	if pin == "" {
		http.Error(w, "pin is required", http.StatusBadRequest)
		return
	}
	var typ *domain.BiometricType
	if v := q.Get("type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid type", http.StatusBadRequest)
			return
		}
		bt := domain.BiometricType(n)
		typ = &bt
	}
	var slot *int
	if v := q.Get("slot"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid slot", http.StatusBadRequest)
			return
		}
		slot = &n
	}

	if err := h.biometrics.Delete(req.Context(), pin, typ, slot); err != nil {
		h.logger.Error("delete admin template failed", zap.String("pin", pin), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	cat, payload, idem, err := formatter.DeleteBiometric(pin, typ, slot)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.pushToAllPeers(req.Context(), "BIODATA", pin, cat, payload, idem)
	w.WriteHeader(http.StatusAccepted)
}

func (h *AdminHandler) pushToAllPeers(ctx context.Context, recordType, recordKey string, cat domain.CommandCategory, payload string, idem bool) {
	peers, err := h.peers.ActiveSet(ctx)
	if err != nil {
		h.logger.Error("list active terminals for admin push failed", zap.Error(err))
		return
	}
	for _, peer := range peers {
		entry := domain.SyncLogEntry{TargetSN: peer.Serial, RecordType: recordType, RecordKey: recordKey}
		id, err := h.peers.Enqueue(ctx, peer.Serial, cat, payload, idem)
		if err != nil {
			entry.Action = "enqueue"
			entry.Status = "skipped"
			entry.Reason = err.Error()
			h.logger.Warn("admin push enqueue failed", zap.String("target", peer.Serial), zap.Error(err))
		} else {
			entry.Action = "enqueue"
			entry.Status = "queued"
			entry.RecordKey = id
		}
		if h.syncLog != nil {
			if err := h.syncLog.Append(ctx, entry); err != nil {
				h.logger.Warn("failed to append admin sync log entry", zap.Error(err))
			}
		}
	}
}

type terminalQueueResponse struct {
	Serial        string           `json:"serial"`
	PendingCount  int              `json:"pending_count"`
	History       []domain.Command `json:"history"`
	StateCounts   map[string]int64 `json:"state_counts,omitempty"`
}

// TerminalQueue reports a terminal's pending command count, recent command
// history, and the rolling state-transition counts observed on the
// lifecycle stream.
func (h *AdminHandler) TerminalQueue(w http.ResponseWriter, req *http.Request) {
	serial := strings.TrimSuffix(strings.TrimPrefix(req.URL.Path, "/admin/terminals/"), "/queue")
	if serial == "" {
		http.Error(w, "missing terminal serial in path", http.StatusBadRequest)
		return
	}

	pending, err := h.queue.PendingCount(req.Context(), serial)
	if err != nil {
		h.logger.Error("pending count failed", zap.String("serial", serial), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	history, err := h.queue.History(req.Context(), serial, 50)
	if err != nil {
		h.logger.Error("command history failed", zap.String("serial", serial), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := terminalQueueResponse{Serial: serial, PendingCount: pending, History: history}
	if h.lifecycle != nil {
		resp.StateCounts = h.lifecycle.Counts()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode terminal queue response failed", zap.String("serial", serial), zap.Error(err))
	}
}
