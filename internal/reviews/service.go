package reviews

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox/payloads"
)

// Service exposes review submission and listing.
type Service interface {
	Add(ctx context.Context, vendorID uuid.UUID, input AddReviewInput) (*Review, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]Review, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type reviewStore interface {
	WithTx(tx *gorm.DB) *Repository
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Review, error)
}

type ServiceParams struct {
	Repository reviewStore
	Users      userLookup
	DB         txRunner
	Outbox     outboxPublisher
	Realtime   realtime.Publisher
	Logger     *logger.Logger
}

type service struct {
	repo     reviewStore
	users    userLookup
	db       txRunner
	outbox   outboxPublisher
	realtime realtime.Publisher
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("reviews repository required")
	case params.Users == nil:
		return nil, fmt.Errorf("users lookup required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repository,
		users:    params.Users,
		db:       params.DB,
		outbox:   params.Outbox,
		realtime: params.Realtime,
		logg:     logg,
	}, nil
}

func (s *service) Add(ctx context.Context, vendorID uuid.UUID, input AddReviewInput) (*Review, error) {
	rating, comment, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier_id is required")
	}
	supplier, err := s.users.FindByID(ctx, input.SupplierID)
	if err != nil {
		return nil, repo.Translate(err, "supplier not found")
	}
	if supplier.Role != enums.UserRoleSupplier {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
	}

	var created *models.Review
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.repo.WithTx(tx).Create(ctx, &models.Review{
			SupplierID: supplier.ID,
			VendorID:   vendorID,
			Rating:     rating,
			Comment:    comment,
		})
		if err != nil {
			return err
		}
		created = row
		return s.outbox.Emit(ctx, tx, outbox.Event{
			Type:          enums.EventReviewAdded,
			AggregateType: enums.AggregateReview,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{UserID: vendorID, Role: enums.UserRoleVendor},
			Data: payloads.ReviewAddedEvent{
				ReviewID:   row.ID,
				SupplierID: row.SupplierID,
				VendorID:   row.VendorID,
				Rating:     row.Rating,
			},
			OccurredAt: row.CreatedAt,
		})
	})
	if err != nil {
		return nil, repo.Translate(err, "supplier not found")
	}

	review := FromModel(created)
	s.notify(ctx, review)
	return review, nil
}

func (s *service) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]Review, error) {
	rows, err := s.repo.ListBySupplier(ctx, supplierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	out := make([]Review, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) notify(ctx context.Context, review *Review) {
	if s.realtime == nil {
		return
	}
	event, err := realtime.NewEvent(realtime.EventReviewAdded, review)
	if err == nil {
		err = s.realtime.Publish(ctx, realtime.TopicSuppliers, event)
	}
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"review_id": review.ID, "error": err.Error()})
		s.logg.Warn(logCtx, "review realtime publish failed")
	}
}

func normalizeInput(input AddReviewInput) (int, *string, error) {
	rating := input.Rating
	if rating == 0 {
		rating = defaultRating
	}
	if rating < minRating || rating > maxRating {
		return 0, nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"rating": input.Rating})
	}
	if input.Comment == nil {
		return rating, nil, nil
	}
	comment := strings.TrimSpace(*input.Comment)
	if comment == "" {
		return rating, nil, nil
	}
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return 0, nil, pkgerrors.New(pkgerrors.CodeValidation, "comment must be at most 1000 characters")
	}
	return rating, &comment, nil
}
