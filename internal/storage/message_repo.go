package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// MessageRepo is the postgres-backed repository.MessageRepository.
type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) UpsertSMS(ctx context.Context, m domain.ShortMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO short_messages (uid, content, source_sn) VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET content = EXCLUDED.content, source_sn = EXCLUDED.source_sn
	`, m.UID, m.Content, m.SourceSN)
	if err != nil {
		return fmt.Errorf("upsert sms uid=%s: %w", m.UID, err)
	}
	return nil
}

func (r *MessageRepo) UpsertUserSMS(ctx context.Context, m domain.UserMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_messages (pin, uid, source_sn) VALUES ($1, $2, $3)
		ON CONFLICT (pin, uid) DO UPDATE SET source_sn = EXCLUDED.source_sn
	`, m.PIN, m.UID, m.SourceSN)
	if err != nil {
		return fmt.Errorf("upsert user sms pin=%s uid=%s: %w", m.PIN, m.UID, err)
	}
	return nil
}

func (r *MessageRepo) DeleteSMS(ctx context.Context, uid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM short_messages WHERE uid = $1`, uid); err != nil {
		return fmt.Errorf("delete sms uid=%s: %w", uid, err)
	}
	return nil
}
