package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// WorkCodeRepo is the postgres-backed repository.WorkCodeRepository.
type WorkCodeRepo struct {
	db *sql.DB
}

func NewWorkCodeRepo(db *sql.DB) *WorkCodeRepo {
	return &WorkCodeRepo{db: db}
}

func (r *WorkCodeRepo) Upsert(ctx context.Context, w domain.WorkCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO work_codes (pin, code, name, source_sn)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pin, code) DO UPDATE SET name = EXCLUDED.name, source_sn = EXCLUDED.source_sn
	`, w.PIN, w.Code, w.Name, w.SourceSN)
	if err != nil {
		return fmt.Errorf("upsert work code pin=%s code=%s: %w", w.PIN, w.Code, err)
	}
	return nil
}

func (r *WorkCodeRepo) Delete(ctx context.Context, pin, code string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM work_codes WHERE pin = $1 AND code = $2`, pin, code); err != nil {
		return fmt.Errorf("delete work code pin=%s code=%s: %w", pin, code, err)
	}
	return nil
}

func (r *WorkCodeRepo) ListBySource(ctx context.Context, sourceSN string) ([]domain.WorkCode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT pin, code, name, source_sn FROM work_codes WHERE source_sn = $1`, sourceSN)
	if err != nil {
		return nil, fmt.Errorf("list work codes by source %s: %w", sourceSN, err)
	}
	defer rows.Close()

	var out []domain.WorkCode
	for rows.Next() {
		var w domain.WorkCode
		if err := rows.Scan(&w.PIN, &w.Code, &w.Name, &w.SourceSN); err != nil {
			return nil, fmt.Errorf("scan work code: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
