package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// PhotoRepo is the postgres-backed repository.PhotoRepository.
type PhotoRepo struct {
	db *sql.DB
}

func NewPhotoRepo(db *sql.DB) *PhotoRepo {
	return &PhotoRepo{db: db}
}

func (r *PhotoRepo) Upsert(ctx context.Context, p domain.Photo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO photos (kind, pin, type, filename, size, content, source_sn)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (kind, pin, type) DO UPDATE SET
			filename = EXCLUDED.filename, size = EXCLUDED.size, content = EXCLUDED.content, source_sn = EXCLUDED.source_sn
	`, p.Kind, p.PIN, p.Type, p.Filename, p.Size, p.Content, p.SourceSN)
	if err != nil {
		return fmt.Errorf("upsert photo kind=%s pin=%s: %w", p.Kind, p.PIN, err)
	}
	return nil
}

func (r *PhotoRepo) Delete(ctx context.Context, kind, pin, typ string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE kind = $1 AND pin = $2 AND type = $3`, kind, pin, typ); err != nil {
		return fmt.Errorf("delete photo kind=%s pin=%s: %w", kind, pin, err)
	}
	return nil
}

func (r *PhotoRepo) ListBySource(ctx context.Context, sourceSN string) ([]domain.Photo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, pin, type, filename, size, content, source_sn FROM photos WHERE source_sn = $1
	`, sourceSN)
	if err != nil {
		return nil, fmt.Errorf("list photos by source %s: %w", sourceSN, err)
	}
	defer rows.Close()

	var out []domain.Photo
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.Kind, &p.PIN, &p.Type, &p.Filename, &p.Size, &p.Content, &p.SourceSN); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
