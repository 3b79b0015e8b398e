package search

import (
	"strings"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/internal/users"
)

// Supplier is the searchable projection of a supplier profile.
type Supplier struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Location    *string   `json:"location,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	Verified    bool      `json:"verified"`
	Specialties []string  `json:"specialties"`
}

// FromProfile projects a user profile for searching.
func FromProfile(p users.Profile) Supplier {
	rating := p.Rating
	return Supplier{
		ID:          p.ID,
		Name:        p.Name,
		Location:    p.Location,
		Rating:      &rating,
		Verified:    p.Verified,
		Specialties: p.Specialties,
	}
}

// Filter holds the supplier directory criteria. The zero value matches everything.
type Filter struct {
	FreeText     string  `json:"q"`
	Category     string  `json:"category"`
	Location     string  `json:"location"`
	MinRating    float64 `json:"min_rating"`
	VerifiedOnly bool    `json:"verified_only"`
}

func DefaultFilter() Filter { return Filter{} }

// Reset clears every criterion at once.
func (f Filter) Reset() Filter { return DefaultFilter() }

// IsDefault reports whether the filter would match every supplier.
func (f Filter) IsDefault() bool {
	return strings.TrimSpace(f.FreeText) == "" &&
		strings.TrimSpace(f.Category) == "" &&
		strings.TrimSpace(f.Location) == "" &&
		f.MinRating <= 0 &&
		!f.VerifiedOnly
}

// Matches applies every predicate of the filter to one supplier.
func (f Filter) Matches(s Supplier) bool {
	if text := normalize(f.FreeText); text != "" {
		if !strings.Contains(normalize(s.Name), text) && !anySpecialtyContains(s.Specialties, text) {
			return false
		}
	}
	if category := normalize(f.Category); category != "" {
		if !hasSpecialty(s.Specialties, category) {
			return false
		}
	}
	if location := normalize(f.Location); location != "" {
		if s.Location == nil || !strings.Contains(normalize(*s.Location), location) {
			return false
		}
	}
	rating := 0.0
	if s.Rating != nil {
		rating = *s.Rating
	}
	if rating < f.MinRating {
		return false
	}
	if f.VerifiedOnly && !s.Verified {
		return false
	}
	return true
}

// Apply returns the suppliers matching f in their input order.
func Apply(suppliers []Supplier, f Filter) []Supplier {
	out := make([]Supplier, 0, len(suppliers))
	for _, s := range suppliers {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func anySpecialtyContains(specialties []string, text string) bool {
	for _, tag := range specialties {
		if strings.Contains(normalize(tag), text) {
			return true
		}
	}
	return false
}

func hasSpecialty(specialties []string, category string) bool {
	for _, tag := range specialties {
		if normalize(tag) == category {
			return true
		}
	}
	return false
}
