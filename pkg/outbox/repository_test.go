package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

func emitOrder(t *testing.T, conn *gorm.DB, em *Emitter, data any) uuid.UUID {
	t.Helper()
	aggregate := uuid.New()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return em.Emit(context.Background(), tx, Event{
			Type:          enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   aggregate,
			Actor:         &ActorRef{UserID: uuid.New(), Role: enums.UserRoleVendor},
			Data:          data,
		})
	}))
	return aggregate
}

func loadRow(t *testing.T, conn *gorm.DB, aggregate uuid.UUID) models.OutboxEvent {
	t.Helper()
	var row models.OutboxEvent
	require.NoError(t, conn.Where("aggregate_id = ?", aggregate).First(&row).Error)
	return row
}

func TestEmitWritesEnvelopeKeyedByRowID(t *testing.T) {
	conn := repo.OpenSQLiteTestDB(t)
	em := NewEmitter(NewRepository(conn), logger.Nop())

	aggregate := emitOrder(t, conn, em, map[string]string{"status": "pending"})
	row := loadRow(t, conn, aggregate)

	env, id, err := ParseEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, row.ID, id)
	assert.Equal(t, PayloadVersion, env.Version)
	assert.False(t, env.OccurredAt.IsZero())
	assert.JSONEq(t, `{"status":"pending"}`, string(env.Data))
	assert.False(t, row.Published())
}

func TestEmitRequiresTransactionAndValidEvent(t *testing.T) {
	em := NewEmitter(NewRepository(nil), nil)
	ctx := context.Background()

	assert.ErrorIs(t, em.Emit(ctx, nil, Event{}), ErrTxRequired)

	conn := repo.OpenSQLiteTestDB(t)
	err := conn.Transaction(func(tx *gorm.DB) error {
		return em.Emit(ctx, tx, Event{Type: "menu_updated", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()})
	})
	assert.Error(t, err)
	err = conn.Transaction(func(tx *gorm.DB) error {
		return em.Emit(ctx, tx, Event{Type: enums.EventReviewAdded, AggregateType: enums.AggregateReview})
	})
	assert.Error(t, err)
}

func TestClaimBatchSkipsPublishedAndExhausted(t *testing.T) {
	conn := repo.OpenSQLiteTestDB(t)
	rows := NewRepository(conn)
	em := NewEmitter(rows, nil)

	fresh := loadRow(t, conn, emitOrder(t, conn, em, 1))
	done := loadRow(t, conn, emitOrder(t, conn, em, 2))
	spent := loadRow(t, conn, emitOrder(t, conn, em, 3))

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if err := rows.MarkPublished(tx, done.ID, time.Now()); err != nil {
			return err
		}
		return rows.Park(tx, spent.ID, errors.New("bad payload"), 5)
	}))

	var claimed []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) (err error) {
		claimed, err = rows.ClaimBatch(tx, 10, 5)
		return err
	}))
	require.Len(t, claimed, 1)
	assert.Equal(t, fresh.ID, claimed[0].ID)

	assert.True(t, loadRow(t, conn, done.AggregateID).Published())
	parked := loadRow(t, conn, spent.AggregateID)
	assert.Equal(t, 5, parked.AttemptCount)
	require.NotNil(t, parked.LastError)
	assert.Equal(t, "bad payload", *parked.LastError)
}

func TestRecordFailureTruncatesAndCounts(t *testing.T) {
	conn := repo.OpenSQLiteTestDB(t)
	rows := NewRepository(conn)
	row := loadRow(t, conn, emitOrder(t, conn, NewEmitter(rows, nil), "x"))

	long := errors.New(strings.Repeat("e", 2*maxErrorText))
	for range 2 {
		require.NoError(t, rows.RecordFailure(conn, row.ID, long))
	}
	got := loadRow(t, conn, row.AggregateID)
	assert.Equal(t, 2, got.AttemptCount)
	assert.Len(t, *got.LastError, maxErrorText)
	assert.ErrorIs(t, rows.RecordFailure(nil, row.ID, long), ErrTxRequired)
}

func TestPurgeBefore(t *testing.T) {
	conn := repo.OpenSQLiteTestDB(t)
	rows := NewRepository(conn)
	dlq := NewDLQRepository()
	em := NewEmitter(rows, nil)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	published := loadRow(t, conn, emitOrder(t, conn, em, 1))
	abandoned := loadRow(t, conn, emitOrder(t, conn, em, 2))
	pending := loadRow(t, conn, emitOrder(t, conn, em, 3))

	require.NoError(t, rows.MarkPublished(conn, published.ID, old))
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", abandoned.ID).
		Updates(map[string]any{"attempt_count": 10, "created_at": old}).Error)
	require.NoError(t, dlq.Insert(conn, abandoned.DeadLetter(enums.OutboxDLQReasonMaxAttempts, "gave up", old)))

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	n, err := rows.PurgeBefore(ctx, conn, cutoff, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	var left []models.OutboxEvent
	require.NoError(t, conn.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, pending.ID, left[0].ID)

	n, err = dlq.PurgeBefore(ctx, conn, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestClipKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", clip("short"))

	msg := strings.Repeat("a", maxErrorText-1) + "é"
	got := clip(msg)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, maxErrorText-1)
}
