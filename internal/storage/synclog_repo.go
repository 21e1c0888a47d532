package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/google/uuid"
)

// SyncLogRepo is the postgres-backed repository.SyncLogRepository.
type SyncLogRepo struct {
	db *sql.DB
}

func NewSyncLogRepo(db *sql.DB) *SyncLogRepo {
	return &SyncLogRepo{db: db}
}

func (r *SyncLogRepo) Append(ctx context.Context, e domain.SyncLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_log (id, source_sn, target_sn, record_type, record_key, action, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.SourceSN, e.TargetSN, e.RecordType, e.RecordKey, e.Action, e.Status, e.Reason)
	if err != nil {
		return fmt.Errorf("append sync log source=%s target=%s: %w", e.SourceSN, e.TargetSN, err)
	}
	return nil
}
