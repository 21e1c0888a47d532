package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// BiometricRepo is the postgres-backed repository.BiometricRepository.
type BiometricRepo struct {
	db *sql.DB
}

func NewBiometricRepo(db *sql.DB) *BiometricRepo {
	return &BiometricRepo{db: db}
}

func (r *BiometricRepo) Upsert(ctx context.Context, t domain.BiometricTemplate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO biometric_templates (pin, type, slot, index_no, valid, duress, major_ver, minor_ver, format, template, source_sn)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (pin, type, slot, index_no) DO UPDATE SET
			valid = EXCLUDED.valid, duress = EXCLUDED.duress, major_ver = EXCLUDED.major_ver,
			minor_ver = EXCLUDED.minor_ver, format = EXCLUDED.format, template = EXCLUDED.template,
			source_sn = EXCLUDED.source_sn
	`, t.PIN, int(t.Type), t.Slot, t.Index, t.Valid, t.Duress, t.MajorVer, t.MinorVer, t.Format, t.Template, t.SourceSN)
	if err != nil {
		return fmt.Errorf("upsert biometric template pin=%s type=%d: %w", t.PIN, t.Type, err)
	}
	return nil
}

func (r *BiometricRepo) Delete(ctx context.Context, pin string, typ *domain.BiometricType, slot *int) error {
	where := []string{"pin = $1"}
	args := []any{pin}
	n := 2
	if typ != nil {
		where = append(where, fmt.Sprintf("type = $%d", n))
		args = append(args, int(*typ))
		n++
		if slot != nil {
			where = append(where, fmt.Sprintf("slot = $%d", n))
			args = append(args, *slot)
			n++
		}
	}
	query := "DELETE FROM biometric_templates WHERE " + strings.Join(where, " AND ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete biometric templates pin=%s: %w", pin, err)
	}
	return nil
}

func (r *BiometricRepo) ListByPIN(ctx context.Context, pin string) ([]domain.BiometricTemplate, error) {
	return r.list(ctx, "pin = $1", pin)
}

func (r *BiometricRepo) ListBySource(ctx context.Context, sourceSN string) ([]domain.BiometricTemplate, error) {
	return r.list(ctx, "source_sn = $1", sourceSN)
}

func (r *BiometricRepo) list(ctx context.Context, where string, arg string) ([]domain.BiometricTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pin, type, slot, index_no, valid, duress, major_ver, minor_ver, format, template, source_sn
		FROM biometric_templates WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("list biometric templates: %w", err)
	}
	defer rows.Close()

	var out []domain.BiometricTemplate
	for rows.Next() {
		var t domain.BiometricTemplate
		var typ int
		if err := rows.Scan(&t.PIN, &typ, &t.Slot, &t.Index, &t.Valid, &t.Duress, &t.MajorVer, &t.MinorVer, &t.Format, &t.Template, &t.SourceSN); err != nil {
			return nil, fmt.Errorf("scan biometric template: %w", err)
		}
		t.Type = domain.BiometricType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}
