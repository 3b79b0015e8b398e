package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

type memoryKV struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryKV) SwapIfEquals(ctx context.Context, key, prev, next string, ttl time.Duration) (bool, error) {
	if m.data[key] != prev {
		return false, nil
	}
	if next == "" {
		delete(m.data, key)
		return true, nil
	}
	m.data[key] = next
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryKV) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryKV) CompareKey(vendorID string) string { return "sfc:compare:" + vendorID }

type searchFixture struct {
	conn *gorm.DB
	svc  Service
	kv   *memoryKV
	seed func(name string, role enums.UserRole, tags ...string) *models.User
}

func newSearchFixture(t *testing.T) searchFixture {
	t.Helper()
	conn := repo.OpenSQLiteTestDB(t)
	userRepo := users.NewRepository(conn)
	directory, err := users.NewService(users.ServiceParams{Repository: userRepo})
	require.NoError(t, err)
	kv := newMemoryKV()
	svc, err := NewService(ServiceParams{Directory: directory, Compare: NewCompareStore(kv)})
	require.NoError(t, err)
	return searchFixture{
		conn: conn,
		svc:  svc,
		kv:   kv,
		seed: func(name string, role enums.UserRole, tags ...string) *models.User {
			user, err := userRepo.Create(context.Background(), users.CreateUserDTO{
				Email:        uuid.NewString() + "@example.com",
				PasswordHash: "hash",
				Name:         name,
				Role:         role,
				Specialties:  tags,
			})
			require.NoError(t, err)
			return user
		},
	}
}

func TestSearchNarrowsThenFilters(t *testing.T) {
	f := newSearchFixture(t)
	farms := f.seed("Fresh Farms", enums.UserRoleSupplier, "Vegetables")
	f.seed("Spice Route", enums.UserRoleSupplier, "Spices")
	f.seed("Chaat Corner", enums.UserRoleVendor, "Vegetables")
	require.NoError(t, f.conn.Model(&models.User{}).Where("id = ?", farms.ID).Updates(map[string]any{"rating": 4.4, "verified": true}).Error)

	found, err := f.svc.Search(context.Background(), Filter{Category: "vegetables"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, farms.ID, found[0].ID)

	found, err = f.svc.Search(context.Background(), Filter{VerifiedOnly: true, MinRating: 4})
	require.NoError(t, err)
	require.Len(t, found, 1)

	all, err := f.svc.Search(context.Background(), DefaultFilter())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.Search(context.Background(), Filter{MinRating: 7})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCompareLifecycle(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	vendor := f.seed("Chaat Corner", enums.UserRoleVendor)
	s1 := f.seed("One", enums.UserRoleSupplier)
	s2 := f.seed("Two", enums.UserRoleSupplier)
	s3 := f.seed("Three", enums.UserRoleSupplier)
	s4 := f.seed("Four", enums.UserRoleSupplier)

	for _, s := range []*models.User{s1, s2, s3} {
		res, err := f.svc.AddToCompare(ctx, vendor.ID, s.ID)
		require.NoError(t, err)
		assert.True(t, res.Added)
	}
	assert.Equal(t, 7*24*time.Hour, f.kv.ttls["sfc:compare:"+vendor.ID.String()])

	res, err := f.svc.AddToCompare(ctx, vendor.ID, s4.ID)
	require.NoError(t, err)
	assert.False(t, res.Added)
	require.Len(t, res.Suppliers, 3)

	res, err = f.svc.AddToCompare(ctx, vendor.ID, s1.ID)
	require.NoError(t, err)
	assert.False(t, res.Added)

	res, err = f.svc.RemoveFromCompare(ctx, vendor.ID, s2.ID)
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.Equal(t, []string{"One", "Three"}, []string{res.Suppliers[0].Name, res.Suppliers[1].Name})

	current, err := f.svc.Compare(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Len(t, current.Suppliers, 2)

	require.NoError(t, f.svc.ClearCompare(ctx, vendor.ID))
	current, err = f.svc.Compare(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Empty(t, current.Suppliers)
}

func TestAddToCompareRejectsNonSuppliers(t *testing.T) {
	f := newSearchFixture(t)
	vendor := f.seed("Chaat Corner", enums.UserRoleVendor)
	other := f.seed("Dosa Point", enums.UserRoleVendor)

	_, err := f.svc.AddToCompare(context.Background(), vendor.ID, other.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddToCompare(context.Background(), vendor.ID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

// racingKV lets another writer land between the read and the swap of the
// first update it sees.
type racingKV struct {
	*memoryKV
	race func()
}

func (r *racingKV) SwapIfEquals(ctx context.Context, key, prev, next string, ttl time.Duration) (bool, error) {
	if race := r.race; race != nil {
		r.race = nil
		race()
	}
	return r.memoryKV.SwapIfEquals(ctx, key, prev, next, ttl)
}

func TestConcurrentCompareAddsKeepBoth(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	vendor := f.seed("Chaat Corner", enums.UserRoleVendor)
	s1 := f.seed("One", enums.UserRoleSupplier)
	s2 := f.seed("Two", enums.UserRoleSupplier)

	directory, err := users.NewService(users.ServiceParams{Repository: users.NewRepository(f.conn)})
	require.NoError(t, err)
	kv := &racingKV{memoryKV: f.kv}
	svc, err := NewService(ServiceParams{Directory: directory, Compare: NewCompareStore(kv)})
	require.NoError(t, err)
	kv.race = func() {
		res, err := f.svc.AddToCompare(ctx, vendor.ID, s2.ID)
		require.NoError(t, err)
		require.True(t, res.Added)
	}

	res, err := svc.AddToCompare(ctx, vendor.ID, s1.ID)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, []string{"Two", "One"}, []string{res.Suppliers[0].Name, res.Suppliers[1].Name})

	stored, err := NewCompareStore(f.kv).Load(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{s2.ID, s1.ID}, stored)
}

func TestCompareUpdateGivesUpUnderContention(t *testing.T) {
	kv := newMemoryKV()
	store := NewCompareStore(kv)
	vendor := uuid.New()
	racing := &racingKV{memoryKV: kv}
	contended := NewCompareStore(racing)

	_, _, err := contended.Update(context.Background(), vendor, func(ids []uuid.UUID) ([]uuid.UUID, bool) {
		racing.race = func() {
			_, _, err := store.Update(context.Background(), vendor, func(ids []uuid.UUID) ([]uuid.UUID, bool) {
				return append(ids, uuid.New()), true
			})
			require.NoError(t, err)
		}
		return append(ids, uuid.New()), true
	})
	assert.ErrorIs(t, err, ErrCompareContention)
}

func TestCompareDropsSuppliersThatNoLongerResolve(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	vendor := f.seed("Chaat Corner", enums.UserRoleVendor)
	gone := f.seed("Gone", enums.UserRoleSupplier)
	s1 := f.seed("One", enums.UserRoleSupplier)
	s2 := f.seed("Two", enums.UserRoleSupplier)
	s3 := f.seed("Three", enums.UserRoleSupplier)

	for _, s := range []*models.User{gone, s1, s2} {
		_, err := f.svc.AddToCompare(ctx, vendor.ID, s.ID)
		require.NoError(t, err)
	}
	require.NoError(t, f.conn.Unscoped().Delete(&models.User{}, "id = ?", gone.ID).Error)

	current, err := f.svc.Compare(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Len(t, current.Suppliers, 2)

	res, err := f.svc.AddToCompare(ctx, vendor.ID, s3.ID)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, []string{"One", "Two", "Three"}, []string{res.Suppliers[0].Name, res.Suppliers[1].Name, res.Suppliers[2].Name})
}
