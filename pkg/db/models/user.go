package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/streetfoodconnect/marketplace-backend/pkg/db/types"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// User is the canonical account for both vendors and suppliers.
type User struct {
	ID           uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string              `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string              `gorm:"column:password_hash;not null"`
	Name         string              `gorm:"column:name;not null"`
	Role         enums.UserRole      `gorm:"column:role;type:user_role;not null"`
	Phone        *string             `gorm:"column:phone"`
	Location     *string             `gorm:"column:location"`
	BusinessType *string             `gorm:"column:business_type"`
	Rating       float64             `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	Verified     bool                `gorm:"column:verified;not null;default:false"`
	Specialties  dbtypes.StringArray `gorm:"type:text[];column:specialties;not null;default:'{}'"`
	LastLoginAt  *time.Time          `gorm:"column:last_login_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
