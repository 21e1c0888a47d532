// Package repository defines typed store-gateway interfaces over the
// canonical entities. Implementations live in internal/storage.
package repository

import (
	"context"
	"time"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// TerminalRepository persists terminal registration state.
type TerminalRepository interface {
	Upsert(ctx context.Context, t domain.Terminal) error
	Get(ctx context.Context, serial string) (*domain.Terminal, error)
	ListActive(ctx context.Context, since time.Time) ([]domain.Terminal, error)
	Delete(ctx context.Context, serial string) error
}

// UserRepository persists canonical user rows.
type UserRepository interface {
	Upsert(ctx context.Context, u domain.User) error
	Get(ctx context.Context, pin string) (*domain.User, error)
	// Delete removes the user and every biometric/photo/workcode/user-message
	// row keyed by pin, in a single statement via foreign-key cascades.
	Delete(ctx context.Context, pin string) error
	ListBySource(ctx context.Context, sourceSN string) ([]domain.User, error)
}

// BiometricRepository persists canonical biometric template rows.
type BiometricRepository interface {
	Upsert(ctx context.Context, t domain.BiometricTemplate) error
	// Delete removes rows for pin, optionally narrowed by type and slot.
	Delete(ctx context.Context, pin string, typ *domain.BiometricType, slot *int) error
	ListByPIN(ctx context.Context, pin string) ([]domain.BiometricTemplate, error)
	ListBySource(ctx context.Context, sourceSN string) ([]domain.BiometricTemplate, error)
}

// PhotoRepository persists user and comparison photos.
type PhotoRepository interface {
	Upsert(ctx context.Context, p domain.Photo) error
	Delete(ctx context.Context, kind, pin, typ string) error
	ListBySource(ctx context.Context, sourceSN string) ([]domain.Photo, error)
}

// WorkCodeRepository persists work codes.
type WorkCodeRepository interface {
	Upsert(ctx context.Context, w domain.WorkCode) error
	Delete(ctx context.Context, pin, code string) error
	ListBySource(ctx context.Context, sourceSN string) ([]domain.WorkCode, error)
}

// MessageRepository persists short messages and their user associations.
type MessageRepository interface {
	UpsertSMS(ctx context.Context, m domain.ShortMessage) error
	UpsertUserSMS(ctx context.Context, m domain.UserMessage) error
	DeleteSMS(ctx context.Context, uid string) error
}

// IDCardRepository persists government id-card records.
type IDCardRepository interface {
	Upsert(ctx context.Context, c domain.IDCard) error
	Delete(ctx context.Context, idNumber string) error
	ListBySource(ctx context.Context, sourceSN string) ([]domain.IDCard, error)
}

// SyncLogRepository is the append-only fan-out audit trail.
type SyncLogRepository interface {
	Append(ctx context.Context, e domain.SyncLogEntry) error
}
