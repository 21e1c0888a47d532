// Package queue implements the per-terminal outbound command queue: a
// durable FIFO backed by postgres, consumed at most once per poll and
// reconciled against replies that arrive on a later request.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/eventbus"
	"github.com/daniel-mekuria/zk-server/internal/notify"
)

// Queue is constructed once and injected into the fan-out synchronizer,
// the protocol endpoints, and the operator API. It owns no in-process state —
// the commands table is the single source of truth.
type Queue struct {
	db         *sql.DB
	lifecycle  *eventbus.Publisher
	notifier   *notify.Notifier
	retryLimit int
	logger     *zap.Logger
}

func New(db *sql.DB, lifecycle *eventbus.Publisher, retryLimit int, logger *zap.Logger) *Queue {
	return &Queue{db: db, lifecycle: lifecycle, retryLimit: retryLimit, logger: logger}
}

// SetNotifier wires the optional MQTT notifier after construction, so
// tests and callers that don't need one keep using the plain New(...) form.
func (q *Queue) SetNotifier(n *notify.Notifier) {
	q.notifier = n
}

// newCommandID generates a 16-character hex identifier: the first 16 hex
// digits of a v4 UUID, which carry 60 random bits (one digit is the fixed
// version nibble) — plenty of collision margin per terminal.
func newCommandID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// Enqueue inserts a new pending command for terminal and returns its id.
func (q *Queue) Enqueue(ctx context.Context, serial string, category domain.CommandCategory, payload string, idempotent bool) (string, error) {
	id := newCommandID()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO commands (id, serial, category, payload, state, idempotent, retry_count, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, 0, now())
	`, id, serial, string(category), payload, idempotent)
	if err != nil {
		return "", fmt.Errorf("enqueue command for %s: %w", serial, err)
	}
	q.publish(ctx, id, serial, string(domain.CommandPending))
	return id, nil
}

// DequeueNext selects the oldest pending command for serial and marks it
// sent, atomically. Two concurrent polls from the same terminal never
// observe the same row: the SELECT ... FOR UPDATE SKIP LOCKED and the
// following UPDATE run in one transaction, so only one transaction wins
// the row.
func (q *Queue) DequeueNext(ctx context.Context, serial string) (*domain.Command, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue tx: %w", err)
	}
	defer tx.Rollback()

	var cmd domain.Command
	err = tx.QueryRowContext(ctx, `
		SELECT id, serial, category, payload, state, retry_count, idempotent, created_at
		FROM commands
		WHERE serial = $1 AND state = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, serial).Scan(&cmd.ID, &cmd.Serial, &cmd.Category, &cmd.Payload, &cmd.State, &cmd.RetryCount, &cmd.Idempotent, &cmd.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select pending command for %s: %w", serial, err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `UPDATE commands SET state = 'sent', sent_at = $1 WHERE id = $2`, now, cmd.ID); err != nil {
		return nil, fmt.Errorf("mark command %s sent: %w", cmd.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dequeue tx: %w", err)
	}

	cmd.State = domain.CommandSent
	cmd.SentAt = &now
	q.publish(ctx, cmd.ID, cmd.Serial, string(domain.CommandSent))
	return &cmd, nil
}

// ReplyResult is the parsed form of an ampersand-separated reply body.
type ReplyResult struct {
	CommandID string
	Return    string
	Cmd       string
}

// ParseReply parses "ID=<cmdid>&Return=<code>&CMD=<verbtag>[&...]".
func ParseReply(body string) (ReplyResult, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return ReplyResult{}, fmt.Errorf("parse reply body: %w", err)
	}
	r := ReplyResult{
		CommandID: values.Get("ID"),
		Return:    values.Get("Return"),
		Cmd:       values.Get("CMD"),
	}
	if r.CommandID == "" {
		return ReplyResult{}, fmt.Errorf("reply missing ID")
	}
	return r, nil
}

// Reply reconciles one parsed reply against the queue. Return=0 completes
// the command; any other value increments the retry counter and either
// re-queues (idempotent, retries remaining) or abandons it.
func (q *Queue) Reply(ctx context.Context, serial string, reply ReplyResult) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reply tx: %w", err)
	}
	defer tx.Rollback()

	var retryCount int
	var idempotent bool
	err = tx.QueryRowContext(ctx, `
		SELECT retry_count, idempotent FROM commands WHERE id = $1 AND serial = $2
	`, reply.CommandID, serial).Scan(&retryCount, &idempotent)
	if err == sql.ErrNoRows {
		return fmt.Errorf("reply for unknown command %s on %s", reply.CommandID, serial)
	}
	if err != nil {
		return fmt.Errorf("load command %s: %w", reply.CommandID, err)
	}

	if reply.Return == "0" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE commands SET state = 'completed', completed_at = now(), result = $1 WHERE id = $2
		`, reply.Cmd, reply.CommandID); err != nil {
			return fmt.Errorf("complete command %s: %w", reply.CommandID, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		q.publish(ctx, reply.CommandID, serial, string(domain.CommandCompleted))
		return nil
	}

	retryCount++
	if idempotent && retryCount < q.retryLimit {
		if _, err := tx.ExecContext(ctx, `
			UPDATE commands SET state = 'pending', sent_at = NULL, retry_count = $1, result = $2 WHERE id = $3
		`, retryCount, reply.Return, reply.CommandID); err != nil {
			return fmt.Errorf("requeue command %s: %w", reply.CommandID, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		q.publish(ctx, reply.CommandID, serial, string(domain.CommandPending))
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE commands SET state = 'failed', retry_count = $1, result = $2 WHERE id = $3
	`, retryCount, reply.Return, reply.CommandID); err != nil {
		return fmt.Errorf("fail command %s: %w", reply.CommandID, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	q.publish(ctx, reply.CommandID, serial, string(domain.CommandFailed))
	q.notifier.CommandFailed(serial, reply.CommandID, reply.Return)
	return nil
}

// PendingCount returns the number of pending commands queued for serial.
func (q *Queue) PendingCount(ctx context.Context, serial string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT count(*) FROM commands WHERE serial = $1 AND state = 'pending'`, serial).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending commands for %s: %w", serial, err)
	}
	return n, nil
}

// History returns the most recent limit commands for serial, newest first.
func (q *Queue) History(ctx context.Context, serial string, limit int) ([]domain.Command, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, serial, category, payload, state, retry_count, idempotent, result, created_at, sent_at, completed_at
		FROM commands WHERE serial = $1 ORDER BY created_at DESC LIMIT $2
	`, serial, limit)
	if err != nil {
		return nil, fmt.Errorf("load command history for %s: %w", serial, err)
	}
	defer rows.Close()

	var out []domain.Command
	for rows.Next() {
		var c domain.Command
		if err := rows.Scan(&c.ID, &c.Serial, &c.Category, &c.Payload, &c.State, &c.RetryCount, &c.Idempotent, &c.Result, &c.CreatedAt, &c.SentAt, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queue) publish(ctx context.Context, id, serial, state string) {
	if q.lifecycle == nil {
		return
	}
	q.lifecycle.Publish(ctx, eventbus.LifecycleEvent{
		CommandID: id,
		Serial:    serial,
		State:     state,
		Timestamp: time.Now().Unix(),
	})
}
