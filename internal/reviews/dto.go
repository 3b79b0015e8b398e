package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
)

const (
	defaultRating    = 5
	minRating        = 1
	maxRating        = 5
	maxCommentLength = 1000
)

// AddReviewInput is the vendor's review form. A zero rating takes the form default.
type AddReviewInput struct {
	SupplierID uuid.UUID `json:"supplier_id" validate:"required"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
}

// Review is the API view of a persisted review.
type Review struct {
	ID         uuid.UUID `json:"id"`
	SupplierID uuid.UUID `json:"supplier_id"`
	VendorID   uuid.UUID `json:"vendor_id"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func FromModel(m *models.Review) *Review {
	if m == nil {
		return nil
	}
	return &Review{
		ID:         m.ID,
		SupplierID: m.SupplierID,
		VendorID:   m.VendorID,
		Rating:     m.Rating,
		Comment:    m.Comment,
		CreatedAt:  m.CreatedAt,
	}
}
