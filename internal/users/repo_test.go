package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

func seedUser(t *testing.T, r *Repository, name string, role enums.UserRole, tags ...string) *models.User {
	t.Helper()
	user, err := r.Create(context.Background(), CreateUserDTO{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Name:         name,
		Role:         role,
		Specialties:  tags,
	})
	require.NoError(t, err)
	return user
}

func TestRepositoryCreateDefaults(t *testing.T) {
	r := NewRepository(repo.OpenSQLiteTestDB(t))
	created := seedUser(t, r, "Fresh Farms", enums.UserRoleSupplier, " Vegetables ", "vegetables", "", "Spices")

	loaded, err := r.FindByEmail(context.Background(), created.Email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, float64(0), loaded.Rating)
	assert.False(t, loaded.Verified)
	assert.Equal(t, []string{"Vegetables", "Spices"}, []string(loaded.Specialties))
}

func TestRepositoryFindByIDsSkipsUnknown(t *testing.T) {
	r := NewRepository(repo.OpenSQLiteTestDB(t))
	a := seedUser(t, r, "A", enums.UserRoleVendor)
	b := seedUser(t, r, "B", enums.UserRoleSupplier)

	rows, err := r.FindByIDs(context.Background(), []uuid.UUID{a.ID, uuid.New(), b.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	empty, err := r.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepositoryListByRole(t *testing.T) {
	r := NewRepository(repo.OpenSQLiteTestDB(t))
	seedUser(t, r, "Zeta Supplies", enums.UserRoleSupplier)
	seedUser(t, r, "Alpha Supplies", enums.UserRoleSupplier)
	seedUser(t, r, "Chaat Corner", enums.UserRoleVendor)

	rows, err := r.ListByRole(context.Background(), enums.UserRoleSupplier)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha Supplies", rows[0].Name)
	assert.Equal(t, "Zeta Supplies", rows[1].Name)
}

func TestRepositorySearchSuppliersNarrows(t *testing.T) {
	db := repo.OpenSQLiteTestDB(t)
	r := NewRepository(db)
	high := seedUser(t, r, "High", enums.UserRoleSupplier)
	low := seedUser(t, r, "Low", enums.UserRoleSupplier)
	seedUser(t, r, "Vendor", enums.UserRoleVendor)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", high.ID).Updates(map[string]any{"rating": 4.5, "verified": true}).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", low.ID).Update("rating", 2.0).Error)

	all, err := r.SearchSuppliers(context.Background(), SupplierQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, high.ID, all[0].ID)

	narrowed, err := r.SearchSuppliers(context.Background(), SupplierQuery{VerifiedOnly: true, MinRating: 4})
	require.NoError(t, err)
	require.Len(t, narrowed, 1)
	assert.Equal(t, high.ID, narrowed[0].ID)
}

func TestSupplierSearchSQL(t *testing.T) {
	query, args, err := supplierSearchSQL(SupplierQuery{VerifiedOnly: true, MinRating: 3.5})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE role = ? AND verified = ? AND rating >= ? ORDER BY rating DESC, name ASC, id ASC", query)
	assert.Equal(t, []any{"supplier", true, 3.5}, args)
}

func TestRepositoryUpdateProfile(t *testing.T) {
	r := NewRepository(repo.OpenSQLiteTestDB(t))
	user := seedUser(t, r, "Old", enums.UserRoleSupplier)

	name := "New Name"
	location := "Mumbai"
	tags := []string{"dairy"}
	updated, err := r.UpdateProfile(context.Background(), user.ID, ProfilePatch{Name: &name, Location: &location, Specialties: &tags})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	require.NotNil(t, updated.Location)
	assert.Equal(t, "Mumbai", *updated.Location)
	assert.Equal(t, []string{"dairy"}, []string(updated.Specialties))
	assert.Equal(t, enums.UserRoleSupplier, updated.Role)

	_, err = r.UpdateProfile(context.Background(), uuid.New(), ProfilePatch{Name: &name})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryRecomputeRating(t *testing.T) {
	db := repo.OpenSQLiteTestDB(t)
	r := NewRepository(db)
	supplier := seedUser(t, r, "S", enums.UserRoleSupplier)
	other := seedUser(t, r, "T", enums.UserRoleSupplier)
	vendor := seedUser(t, r, "V", enums.UserRoleVendor)
	for _, rating := range []int{5, 4, 4} {
		require.NoError(t, db.Create(&models.Review{ID: uuid.New(), SupplierID: supplier.ID, VendorID: vendor.ID, Rating: rating}).Error)
	}

	got, err := r.RecomputeRating(context.Background(), supplier.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.33, got, 0.0001)

	affected, err := r.RecomputeAllRatings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	reloaded, err := r.FindByID(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(0), reloaded.Rating)
}
