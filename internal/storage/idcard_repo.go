package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// IDCardRepo is the postgres-backed repository.IDCardRepository.
type IDCardRepo struct {
	db *sql.DB
}

func NewIDCardRepo(db *sql.DB) *IDCardRepo {
	return &IDCardRepo{db: db}
}

func (r *IDCardRepo) Upsert(ctx context.Context, c domain.IDCard) error {
	fields, err := json.Marshal(c.Fields)
	if err != nil {
		return fmt.Errorf("marshal id-card fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO id_cards (id_number, fields, fp1, fp2, portrait, source_sn)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id_number) DO UPDATE SET
			fields = EXCLUDED.fields, fp1 = EXCLUDED.fp1, fp2 = EXCLUDED.fp2,
			portrait = EXCLUDED.portrait, source_sn = EXCLUDED.source_sn
	`, c.IDNumber, fields, c.FP1, c.FP2, c.Portrait, c.SourceSN)
	if err != nil {
		return fmt.Errorf("upsert id-card %s: %w", c.IDNumber, err)
	}
	return nil
}

func (r *IDCardRepo) Delete(ctx context.Context, idNumber string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM id_cards WHERE id_number = $1`, idNumber); err != nil {
		return fmt.Errorf("delete id-card %s: %w", idNumber, err)
	}
	return nil
}

func (r *IDCardRepo) ListBySource(ctx context.Context, sourceSN string) ([]domain.IDCard, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id_number, fields, fp1, fp2, portrait, source_sn FROM id_cards WHERE source_sn = $1`, sourceSN)
	if err != nil {
		return nil, fmt.Errorf("list id-cards by source %s: %w", sourceSN, err)
	}
	defer rows.Close()

	var out []domain.IDCard
	for rows.Next() {
		var c domain.IDCard
		var fields []byte
		if err := rows.Scan(&c.IDNumber, &fields, &c.FP1, &c.FP2, &c.Portrait, &c.SourceSN); err != nil {
			return nil, fmt.Errorf("scan id-card: %w", err)
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &c.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal id-card fields: %w", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
