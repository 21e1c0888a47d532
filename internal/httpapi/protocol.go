package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/ingest"
	"github.com/daniel-mekuria/zk-server/internal/queue"
	"github.com/daniel-mekuria/zk-server/internal/registry"
	"github.com/daniel-mekuria/zk-server/internal/repository"
	"github.com/daniel-mekuria/zk-server/internal/wire"
)

// Ingester is the ingest-pipeline boundary the upload endpoint calls
// through. internal/ingest.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, sourceSerial string, body []byte) (ingest.Result, error)
}

// ProtocolHandler implements the five terminal-facing push-protocol
// endpoints.
type ProtocolHandler struct {
	registry      *registry.Registry
	queue         *queue.Queue
	ingest        Ingester
	users         repository.UserRepository
	biometrics    repository.BiometricRepository
	timeZoneOffset int
	serverVersion string
	logger        *zap.Logger
}

func NewProtocolHandler(
	reg *registry.Registry,
	q *queue.Queue,
	ing Ingester,
	users repository.UserRepository,
	biometrics repository.BiometricRepository,
	timeZoneOffset int,
	serverVersion string,
	logger *zap.Logger,
) *ProtocolHandler {
	return &ProtocolHandler{
		registry:       reg,
		queue:          q,
		ingest:         ing,
		users:          users,
		biometrics:     biometrics,
		timeZoneOffset: timeZoneOffset,
		serverVersion:  serverVersion,
		logger:         logger,
	}
}

// Init handles GET /iclock/cdata: the init/config exchange, special-cased
// when table=RemoteAtt to return one PIN's user+biometrics in upload form.
func (h *ProtocolHandler) Init(w http.ResponseWriter, req *http.Request) {
	setProtocolHeaders(w, h.serverVersion)
	q := req.URL.Query()
	serial := q.Get("SN")
	if serial == "" {
		http.Error(w, "missing SN", http.StatusBadRequest)
		return
	}

	if q.Get("table") == "RemoteAtt" {
		h.remoteAtt(w, req.Context(), q.Get("PIN"))
		return
	}

	term, err := h.registry.RegisterOrUpdate(req.Context(), serial, q.Get("pushver"), q.Get("language"))
	if err != nil {
		h.logger.Error("register terminal failed", zap.String("serial", serial), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if key := q.Get("SharedKey"); key != "" && key != term.SharedKey {
		if err := h.registry.RotateSharedKey(req.Context(), serial, key); err != nil {
			h.logger.Warn("rotate shared key failed", zap.String("serial", serial), zap.Error(err))
		} else {
			term.SharedKey = key
		}
	}

	if opts := q.Get("options"); opts != "" && opts != "all" {
		if err := h.registry.ApplyInitOptions(req.Context(), serial, opts); err != nil {
			h.logger.Warn("apply init options failed", zap.String("serial", serial), zap.Error(err))
		}
		refreshed, err := h.registry.Get(req.Context(), serial)
		if err != nil {
			h.logger.Error("reload terminal after options apply failed", zap.String("serial", serial), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if refreshed != nil {
			term = refreshed
		}
	}

	fmt.Fprint(w, buildInitOptionsBlock(term, h.timeZoneOffset))
}

// remoteAtt renders pin's user and biometric rows in upload-dialect form,
// or OK if the user is not found.
func (h *ProtocolHandler) remoteAtt(w http.ResponseWriter, ctx context.Context, pin string) {
	if pin == "" {
		fmt.Fprint(w, "OK")
		return
	}
	u, err := h.users.Get(ctx, pin)
	if err != nil {
		h.logger.Error("load user for RemoteAtt failed", zap.String("pin", pin), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if u == nil {
		fmt.Fprint(w, "OK")
		return
	}

	var b strings.Builder
	b.WriteString(renderUserRecord(*u))
	b.WriteString("\n")

	templates, err := h.biometrics.ListByPIN(ctx, pin)
	if err != nil {
		h.logger.Error("load biometrics for RemoteAtt failed", zap.String("pin", pin), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, t := range templates {
		b.WriteString(renderBioDataRecord(t))
		b.WriteString("\n")
	}
	fmt.Fprint(w, b.String())
}

func renderUserRecord(u domain.User) string {
	fields := strings.Join([]string{
		"PIN=" + u.PIN,
		"Name=" + u.Name,
		"Pri=" + strconv.Itoa(u.Privilege),
		"Passwd=" + u.Password,
		"Card=" + u.Card,
		"Grp=" + u.GroupID,
		"TZ=" + u.TimeZone,
		"Verify=" + strconv.Itoa(u.VerifyMode),
		"ViceCard=" + u.ViceCard,
	}, "\t")
	return "USER " + fields
}

func renderBioDataRecord(t domain.BiometricTemplate) string {
	fields := wire.CanonicalizeBioData(map[string]string{
		"Pin":      t.PIN,
		"No":       strconv.Itoa(t.Slot),
		"Index":    strconv.Itoa(t.Index),
		"Valid":    boolFlag(t.Valid),
		"Duress":   boolFlag(t.Duress),
		"Type":     strconv.Itoa(int(t.Type)),
		"MajorVer": t.MajorVer,
		"MinorVer": t.MinorVer,
		"Format":   t.Format,
		"Tmp":      t.Template,
	})
	return "BIODATA " + fields
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Upload handles POST /iclock/cdata: the multi-record ingest path.
func (h *ProtocolHandler) Upload(w http.ResponseWriter, req *http.Request) {
	setProtocolHeaders(w, h.serverVersion)
	q := req.URL.Query()
	serial := q.Get("SN")
	if serial == "" {
		http.Error(w, "missing SN", http.StatusBadRequest)
		return
	}

	if err := h.registry.Touch(req.Context(), serial); err != nil {
		h.logger.Warn("touch terminal failed", zap.String("serial", serial), zap.Error(err))
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	res, err := h.ingest.Ingest(req.Context(), serial, body)
	if err != nil {
		h.logger.Error("ingest failed", zap.String("serial", serial), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, f := range res.Failures {
		h.logger.Warn("upload record rejected", zap.String("serial", serial), zap.String("reason", f))
	}

	if q.Get("type") == "PostVerifyData" {
		fmt.Fprint(w, "OK")
		return
	}
	fmt.Fprintf(w, "OK: %d", res.Accepted)
}

// Poll handles GET /iclock/getrequest: dequeues the next command.
func (h *ProtocolHandler) Poll(w http.ResponseWriter, req *http.Request) {
	setProtocolHeaders(w, h.serverVersion)
	q := req.URL.Query()
	serial := q.Get("SN")
	if serial == "" {
		http.Error(w, "missing SN", http.StatusBadRequest)
		return
	}

	if info := q.Get("INFO"); info != "" {
		if err := h.registry.UpdateFromInfo(req.Context(), serial, info); err != nil {
			h.logger.Warn("update terminal from INFO failed", zap.String("serial", serial), zap.Error(err))
		}
	} else if err := h.registry.Touch(req.Context(), serial); err != nil {
		h.logger.Warn("touch terminal failed", zap.String("serial", serial), zap.Error(err))
	}

	cmd, err := h.queue.DequeueNext(req.Context(), serial)
	if err != nil {
		h.logger.Error("dequeue failed", zap.String("serial", serial), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if cmd == nil {
		fmt.Fprint(w, "OK")
		return
	}
	fmt.Fprintf(w, "C:%s:%s", cmd.ID, cmd.Payload)
}

// Reply handles POST /iclock/devicecmd: reconciles a command reply.
func (h *ProtocolHandler) Reply(w http.ResponseWriter, req *http.Request) {
	setProtocolHeaders(w, h.serverVersion)
	q := req.URL.Query()
	serial := q.Get("SN")
	if serial == "" {
		http.Error(w, "missing SN", http.StatusBadRequest)
		return
	}
	if err := h.registry.Touch(req.Context(), serial); err != nil {
		h.logger.Warn("touch terminal failed", zap.String("serial", serial), zap.Error(err))
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	for _, line := range wire.SplitLines(body) {
		reply, err := queue.ParseReply(line)
		if err != nil {
			h.logger.Warn("unparseable reply line", zap.String("serial", serial), zap.String("line", line), zap.Error(err))
			continue
		}
		if err := h.queue.Reply(req.Context(), serial, reply); err != nil {
			h.logger.Warn("reply reconciliation failed", zap.String("serial", serial), zap.String("cmdid", reply.CommandID), zap.Error(err))
		}
	}

	// Non-zero return codes are per-command state transitions, not request
	// errors: the endpoint always answers OK.
	fmt.Fprint(w, "OK")
}

// Ping handles GET /iclock/ping: a bare last-seen heartbeat.
func (h *ProtocolHandler) Ping(w http.ResponseWriter, req *http.Request) {
	setProtocolHeaders(w, h.serverVersion)
	serial := req.URL.Query().Get("SN")
	if serial != "" {
		if err := h.registry.Touch(req.Context(), serial); err != nil {
			h.logger.Warn("touch terminal failed", zap.String("serial", serial), zap.Error(err))
		}
	}
	fmt.Fprint(w, "OK")
}
