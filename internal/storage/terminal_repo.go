package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// TerminalRepo is the postgres-backed repository.TerminalRepository.
type TerminalRepo struct {
	db *sql.DB
}

func NewTerminalRepo(db *sql.DB) *TerminalRepo {
	return &TerminalRepo{db: db}
}

func (r *TerminalRepo) Upsert(ctx context.Context, t domain.Terminal) error {
	opts, err := json.Marshal(t.Options)
	if err != nil {
		return fmt.Errorf("marshal terminal options: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO terminals (serial, proto_version, language, shared_key, firmware, ip, fp_algorithm, face_algorithm, options, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (serial) DO UPDATE SET
			proto_version = EXCLUDED.proto_version,
			language = EXCLUDED.language,
			shared_key = EXCLUDED.shared_key,
			firmware = COALESCE(NULLIF(EXCLUDED.firmware, ''), terminals.firmware),
			ip = COALESCE(NULLIF(EXCLUDED.ip, ''), terminals.ip),
			fp_algorithm = COALESCE(NULLIF(EXCLUDED.fp_algorithm, ''), terminals.fp_algorithm),
			face_algorithm = COALESCE(NULLIF(EXCLUDED.face_algorithm, ''), terminals.face_algorithm),
			options = terminals.options || EXCLUDED.options,
			last_seen = EXCLUDED.last_seen
	`, t.Serial, t.ProtoVersion, t.Language, t.SharedKey, t.Firmware, t.IP, t.FPAlgorithm, t.FaceAlgorithm, opts, t.LastSeen)
	if err != nil {
		return fmt.Errorf("upsert terminal %s: %w", t.Serial, err)
	}
	return nil
}

func (r *TerminalRepo) Get(ctx context.Context, serial string) (*domain.Terminal, error) {
	var t domain.Terminal
	var opts []byte
	var sharedKey, firmware, ip, fpAlg, faceAlg sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT serial, proto_version, language, shared_key, firmware, ip, fp_algorithm, face_algorithm, options, last_seen
		FROM terminals WHERE serial = $1
	`, serial).Scan(&t.Serial, &t.ProtoVersion, &t.Language, &sharedKey, &firmware, &ip, &fpAlg, &faceAlg, &opts, &t.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get terminal %s: %w", serial, err)
	}
	t.SharedKey, t.Firmware, t.IP, t.FPAlgorithm, t.FaceAlgorithm = sharedKey.String, firmware.String, ip.String, fpAlg.String, faceAlg.String
	if len(opts) > 0 {
		if err := json.Unmarshal(opts, &t.Options); err != nil {
			return nil, fmt.Errorf("unmarshal terminal options: %w", err)
		}
	}
	return &t, nil
}

func (r *TerminalRepo) ListActive(ctx context.Context, since time.Time) ([]domain.Terminal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT serial, proto_version, language, shared_key, firmware, ip, fp_algorithm, face_algorithm, options, last_seen
		FROM terminals WHERE last_seen >= $1
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list active terminals: %w", err)
	}
	defer rows.Close()

	var out []domain.Terminal
	for rows.Next() {
		var t domain.Terminal
		var opts []byte
		var sharedKey, firmware, ip, fpAlg, faceAlg sql.NullString
		if err := rows.Scan(&t.Serial, &t.ProtoVersion, &t.Language, &sharedKey, &firmware, &ip, &fpAlg, &faceAlg, &opts, &t.LastSeen); err != nil {
			return nil, fmt.Errorf("scan terminal: %w", err)
		}
		t.SharedKey, t.Firmware, t.IP, t.FPAlgorithm, t.FaceAlgorithm = sharedKey.String, firmware.String, ip.String, fpAlg.String, faceAlg.String
		if len(opts) > 0 {
			if err := json.Unmarshal(opts, &t.Options); err != nil {
				return nil, fmt.Errorf("unmarshal terminal options: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TerminalRepo) Delete(ctx context.Context, serial string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM terminals WHERE serial = $1`, serial); err != nil {
		return fmt.Errorf("delete terminal %s: %w", serial, err)
	}
	return nil
}
