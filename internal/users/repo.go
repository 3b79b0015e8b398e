package users

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// SupplierQuery narrows the supplier listing in SQL before the search engine runs.
type SupplierQuery struct {
	VerifiedOnly bool
	MinRating    float64
}

// Repository exposes user-related persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.Tx(tx)}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads every user in ids with one IN query. Missing ids are simply absent.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var rows []models.User
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByRole returns every user with the role, ordered by name.
func (r *Repository) ListByRole(ctx context.Context, role enums.UserRole) ([]models.User, error) {
	var rows []models.User
	err := r.DB(ctx).
		Where("role = ?", role).
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SearchSuppliers pre-filters suppliers in SQL. Text predicates stay in the
// search engine so both drivers share one matching rule.
func (r *Repository) SearchSuppliers(ctx context.Context, q SupplierQuery) ([]models.User, error) {
	query, args, err := supplierSearchSQL(q)
	if err != nil {
		return nil, err
	}
	var rows []models.User
	if err := r.DB(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func supplierSearchSQL(q SupplierQuery) (string, []any, error) {
	builder := sq.Select("*").
		From("users").
		Where(sq.Eq{"role": string(enums.UserRoleSupplier)}).
		OrderBy("rating DESC", "name ASC", "id ASC")
	if q.VerifiedOnly {
		builder = builder.Where(sq.Eq{"verified": true})
	}
	if q.MinRating > 0 {
		builder = builder.Where(sq.GtOrEq{"rating": q.MinRating})
	}
	return builder.ToSql()
}

// UpdateProfile applies the non-nil patch fields and returns the fresh row.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*models.User, error) {
	cols := patch.columns()
	if len(cols) > 0 {
		cols["updated_at"] = time.Now().UTC()
		res := r.DB(ctx).Model(&models.User{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.FindByID(ctx, id)
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

const ratingSubquery = "(SELECT COALESCE(ROUND(AVG(reviews.rating), 2), 0) FROM reviews WHERE reviews.supplier_id = users.id)"

// RecomputeRating sets one supplier's rating to the rounded mean of their reviews.
func (r *Repository) RecomputeRating(ctx context.Context, supplierID uuid.UUID) (float64, error) {
	err := r.DB(ctx).
		Model(&models.User{}).
		Where("id = ? AND role = ?", supplierID, enums.UserRoleSupplier).
		UpdateColumn("rating", gorm.Expr(ratingSubquery)).Error
	if err != nil {
		return 0, err
	}
	user, err := r.FindByID(ctx, supplierID)
	if err != nil {
		return 0, err
	}
	return user.Rating, nil
}

// RecomputeAllRatings refreshes every supplier rating in one statement.
func (r *Repository) RecomputeAllRatings(ctx context.Context) (int64, error) {
	res := r.DB(ctx).
		Model(&models.User{}).
		Where("role = ?", enums.UserRoleSupplier).
		UpdateColumn("rating", gorm.Expr(ratingSubquery))
	return res.RowsAffected, res.Error
}

// UpdatePasswordHash replaces the stored argon2 hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}
