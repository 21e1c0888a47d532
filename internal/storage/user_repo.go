package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// UserRepo is the postgres-backed repository.UserRepository.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Upsert(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (pin, name, privilege, password, card, group_id, time_zone, verify_mode, vice_card, source_sn)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pin) DO UPDATE SET
			name = EXCLUDED.name, privilege = EXCLUDED.privilege, password = EXCLUDED.password,
			card = EXCLUDED.card, group_id = EXCLUDED.group_id, time_zone = EXCLUDED.time_zone,
			verify_mode = EXCLUDED.verify_mode, vice_card = EXCLUDED.vice_card, source_sn = EXCLUDED.source_sn
	`, u.PIN, u.Name, u.Privilege, u.Password, u.Card, u.GroupID, u.TimeZone, u.VerifyMode, u.ViceCard, u.SourceSN)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.PIN, err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, pin string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT pin, name, privilege, password, card, group_id, time_zone, verify_mode, vice_card, source_sn
		FROM users WHERE pin = $1
	`, pin).Scan(&u.PIN, &u.Name, &u.Privilege, &u.Password, &u.Card, &u.GroupID, &u.TimeZone, &u.VerifyMode, &u.ViceCard, &u.SourceSN)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", pin, err)
	}
	return &u, nil
}

// Delete removes the user row. biometric_templates, photos, work_codes and
// user_messages cascade via their foreign keys.
func (r *UserRepo) Delete(ctx context.Context, pin string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE pin = $1`, pin); err != nil {
		return fmt.Errorf("delete user %s: %w", pin, err)
	}
	return nil
}

func (r *UserRepo) ListBySource(ctx context.Context, sourceSN string) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pin, name, privilege, password, card, group_id, time_zone, verify_mode, vice_card, source_sn
		FROM users WHERE source_sn = $1
	`, sourceSN)
	if err != nil {
		return nil, fmt.Errorf("list users by source %s: %w", sourceSN, err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.PIN, &u.Name, &u.Privilege, &u.Password, &u.Card, &u.GroupID, &u.TimeZone, &u.VerifyMode, &u.ViceCard, &u.SourceSN); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
