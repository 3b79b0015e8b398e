package outbox

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
)

// ErrTxRequired guards every write that must share the caller's transaction.
var ErrTxRequired = errors.New("outbox: transaction required")

const maxErrorText = 1024

// Repository owns outbox_events.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, row models.OutboxEvent) error {
	if tx == nil {
		return ErrTxRequired
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return tx.Create(&row).Error
}

// ClaimBatch row-locks up to limit pending events, oldest first. SKIP LOCKED
// lets several publishers share the table; sqlite ignores the clause.
func (r *Repository) ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}
	var rows []models.OutboxEvent
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at, id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, map[string]any{"published_at": at})
}

// RecordFailure bumps attempt_count so the row is retried on a later poll.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    errorText(cause),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// Park pins attempt_count at ceiling so ClaimBatch never returns the row again.
func (r *Repository) Park(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error {
	return r.update(tx, id, map[string]any{
		"last_error":    errorText(cause),
		"attempt_count": ceiling,
	})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, cols map[string]any) error {
	if tx == nil {
		return ErrTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(cols).Error
}

// PurgeBefore deletes rows published before cutoff plus never-published rows
// older than cutoff that already used abandonAttempts tries.
func (r *Repository) PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, abandonAttempts int) (int64, error) {
	if tx == nil {
		return 0, ErrTxRequired
	}
	res := tx.WithContext(ctx).
		Where("published_at < ?", cutoff).
		Or("published_at IS NULL AND attempt_count >= ? AND created_at < ?", abandonAttempts, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return clip(err.Error())
}

// clip bounds msg to maxErrorText bytes without splitting a rune.
func clip(msg string) string {
	if len(msg) <= maxErrorText {
		return msg
	}
	cut := maxErrorText
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
