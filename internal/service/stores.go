package service

import (
	"context"
	"database/sql"
	"time"

	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
)

// Persistence surfaces the services write through. The repository package
// provides the MySQL/Redis implementations; tests substitute in-memory fakes.

// TxRunner runs a function inside a database transaction. *gorm.DB satisfies it.
type TxRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

type UserStore interface {
	Create(user *model.User) error
	FindByExternalID(externalID string) (*model.User, error)
	TouchLastLogin(id uint) error
}

type SessionStore interface {
	Create(session *model.Session) error
	FindByID(id string) (*model.Session, error)
	FindActiveByUser(userID uint) (*model.Session, error)
	ListByUser(userID uint, page, limit int) ([]model.Session, int64, error)
	UpdateState(id string, fromState, toState model.SessionState) error
	MarkClosed(id string, closedAt time.Time, turnCount int, droppedFrames int64) error
	MarkExpired(id string, closedAt time.Time) error
	CountClosedSince(tx *gorm.DB, userID uint, since time.Time, excludeID string) (int64, error)
	PracticedModalities(tx *gorm.DB, userID uint, since time.Time, excludeID string) ([]string, error)
}

type TurnStore interface {
	Create(turn *model.Turn) error
	ListBySession(sessionID string) ([]model.Turn, error)
}

type EvaluationStore interface {
	Create(eval *model.Evaluation) error
	ListBySession(sessionID string) ([]model.Evaluation, error)
	CountByUser(tx *gorm.DB, userID uint) (int64, error)
}

type SummaryStore interface {
	Create(tx *gorm.DB, summary *model.SessionSummary) error
	FindBySession(sessionID string) (*model.SessionSummary, error)
	ListRecentByUser(tx *gorm.DB, userID uint, n int) ([]model.SessionSummary, error)
}

type XPStore interface {
	CreateBatch(tx *gorm.DB, entries []model.XPLedgerEntry) error
}

type StreakStore interface {
	FindByUser(tx *gorm.DB, userID uint) (*model.Streak, error)
	Save(tx *gorm.DB, streak *model.Streak) error
}

type MasteryStore interface {
	Upsert(tx *gorm.DB, userID uint, modality, skill string, attempts, correct int) error
}

type BadgeStore interface {
	Award(tx *gorm.DB, badge *model.UserBadge) (bool, error)
}

type ModeStore interface {
	FindByCode(code string) (*model.TeachingMode, error)
	ListEnabled() ([]model.TeachingMode, error)
}

type LanguageStore interface {
	FindByCode(code string) (*model.Language, error)
	ListEnabled() ([]model.Language, error)
}

// LedgerLocker serializes progress settlement per user across instances.
type LedgerLocker interface {
	AcquireLedgerLock(ctx context.Context, userID uint, ttl time.Duration) (bool, error)
	ReleaseLedgerLock(ctx context.Context, userID uint) error
}

// SessionCacheStore is the hot tier holding live session records.
type SessionCacheStore interface {
	PutSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	Touch(ctx context.Context, sessionID string) error
	RemoveSession(ctx context.Context, sessionID string) error
	LiveSessionIDs(ctx context.Context) ([]string, error)
	ClaimActive(ctx context.Context, userID uint, sessionID string, ttl time.Duration) (bool, error)
	ReleaseActive(ctx context.Context, userID uint, sessionID string) error
}
