package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	dbtypes "github.com/streetfoodconnect/marketplace-backend/pkg/db/types"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// Profile is the public user shape. It never carries credentials.
type Profile struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	Role         enums.UserRole `json:"role"`
	Phone        *string        `json:"phone,omitempty"`
	Location     *string        `json:"location,omitempty"`
	BusinessType *string        `json:"business_type,omitempty"`
	Rating       float64        `json:"rating"`
	Verified     bool           `json:"verified"`
	Specialties  []string       `json:"specialties"`
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	Role         enums.UserRole
	Phone        *string
	Location     *string
	BusinessType *string
	Specialties  []string
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
// Email and role are not patchable.
type ProfilePatch struct {
	Name         *string   `json:"name,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	Location     *string   `json:"location,omitempty"`
	BusinessType *string   `json:"business_type,omitempty"`
	Specialties  *[]string `json:"specialties,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Location == nil && p.BusinessType == nil && p.Specialties == nil
}

func (p ProfilePatch) columns() map[string]any {
	cols := map[string]any{}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Phone != nil {
		cols["phone"] = *p.Phone
	}
	if p.Location != nil {
		cols["location"] = *p.Location
	}
	if p.BusinessType != nil {
		cols["business_type"] = *p.BusinessType
	}
	if p.Specialties != nil {
		cols["specialties"] = dbtypes.StringArray(normalizeTags(*p.Specialties))
	}
	return cols
}

func FromModel(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	specialties := append([]string{}, []string(u.Specialties)...)
	return &Profile{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Phone:        u.Phone,
		Location:     u.Location,
		BusinessType: u.BusinessType,
		Rating:       u.Rating,
		Verified:     u.Verified,
		Specialties:  specialties,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// ToModel builds a fresh account. New accounts always start unverified with a zero rating.
func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Name:         c.Name,
		Role:         c.Role,
		Phone:        c.Phone,
		Location:     c.Location,
		BusinessType: c.BusinessType,
		Rating:       0,
		Verified:     false,
		Specialties:  dbtypes.StringArray(normalizeTags(c.Specialties)),
	}
}

// normalizeTags trims tags and drops blanks and case-insensitive duplicates.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
