package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// CompareResult is the vendor's compare list after a mutation.
type CompareResult struct {
	Added     bool            `json:"added,omitempty"`
	Removed   bool            `json:"removed,omitempty"`
	Suppliers []users.Profile `json:"suppliers"`
}

// Service runs the supplier directory search and the per-vendor compare list.
type Service interface {
	Search(ctx context.Context, f Filter) ([]users.Profile, error)
	Compare(ctx context.Context, vendorID uuid.UUID) (*CompareResult, error)
	AddToCompare(ctx context.Context, vendorID, supplierID uuid.UUID) (*CompareResult, error)
	RemoveFromCompare(ctx context.Context, vendorID, supplierID uuid.UUID) (*CompareResult, error)
	ClearCompare(ctx context.Context, vendorID uuid.UUID) error
}

type supplierDirectory interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*users.Profile, error)
	ListSuppliers(ctx context.Context, q users.SupplierQuery) ([]users.Profile, error)
	BatchLookup(ctx context.Context, ids []uuid.UUID) (users.ProfileLookupResult, error)
}

type compareStore interface {
	Load(ctx context.Context, vendorID uuid.UUID) ([]uuid.UUID, error)
	Update(ctx context.Context, vendorID uuid.UUID, mutate func([]uuid.UUID) ([]uuid.UUID, bool)) ([]uuid.UUID, bool, error)
	Clear(ctx context.Context, vendorID uuid.UUID) error
}

type ServiceParams struct {
	Directory supplierDirectory
	Compare   compareStore
	Logger    *logger.Logger
}

type service struct {
	directory supplierDirectory
	compare   compareStore
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Directory == nil {
		return nil, fmt.Errorf("supplier directory required")
	}
	if params.Compare == nil {
		return nil, fmt.Errorf("compare store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{directory: params.Directory, compare: params.Compare, logg: logg}, nil
}

// Search narrows suppliers in SQL, then applies the full filter in memory.
func (s *service) Search(ctx context.Context, f Filter) ([]users.Profile, error) {
	if f.MinRating < 0 || f.MinRating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_rating must be between 0 and 5")
	}
	candidates, err := s.directory.ListSuppliers(ctx, users.SupplierQuery{
		VerifiedOnly: f.VerifiedOnly,
		MinRating:    f.MinRating,
	})
	if err != nil {
		return nil, err
	}
	out := make([]users.Profile, 0, len(candidates))
	for _, profile := range candidates {
		if f.Matches(FromProfile(profile)) {
			out = append(out, profile)
		}
	}
	return out, nil
}

func (s *service) Compare(ctx context.Context, vendorID uuid.UUID) (*CompareResult, error) {
	ids, err := s.compare.Load(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load compare list")
	}
	return s.result(ctx, vendorID, ids)
}

// AddToCompare hydrates the current list first so suppliers that no longer
// resolve are pruned and stop taking up a slot.
func (s *service) AddToCompare(ctx context.Context, vendorID, supplierID uuid.UUID) (*CompareResult, error) {
	profile, err := s.directory.GetProfile(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if profile.Role != enums.UserRoleSupplier {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
	}
	if _, err := s.Compare(ctx, vendorID); err != nil {
		return nil, err
	}
	ids, added, err := s.compare.Update(ctx, vendorID, func(ids []uuid.UUID) ([]uuid.UUID, bool) {
		set := setOf(ids)
		ok := set.Add(FromProfile(*profile))
		return set.IDs(), ok
	})
	if err != nil {
		return nil, storeError(err, "save compare list")
	}
	res, err := s.result(ctx, vendorID, ids)
	if err != nil {
		return nil, err
	}
	res.Added = added
	return res, nil
}

func (s *service) RemoveFromCompare(ctx context.Context, vendorID, supplierID uuid.UUID) (*CompareResult, error) {
	ids, removed, err := s.compare.Update(ctx, vendorID, func(ids []uuid.UUID) ([]uuid.UUID, bool) {
		set := setOf(ids)
		ok := set.Remove(supplierID)
		return set.IDs(), ok
	})
	if err != nil {
		return nil, storeError(err, "save compare list")
	}
	res, err := s.result(ctx, vendorID, ids)
	if err != nil {
		return nil, err
	}
	res.Removed = removed
	return res, nil
}

func (s *service) ClearCompare(ctx context.Context, vendorID uuid.UUID) error {
	if err := s.compare.Clear(ctx, vendorID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear compare list")
	}
	return nil
}

// setOf rebuilds the set from stored ids. Only ids are stored, so members
// carry no profile data until result hydrates them.
func setOf(ids []uuid.UUID) *CompareSet {
	set := NewCompareSet()
	for _, id := range ids {
		set.Add(Supplier{ID: id})
	}
	return set
}

func storeError(err error, msg string) error {
	if errors.Is(err, ErrCompareContention) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

// result hydrates ids into profiles. Suppliers that no longer resolve are
// dropped from the response and from the stored list.
func (s *service) result(ctx context.Context, vendorID uuid.UUID, ids []uuid.UUID) (*CompareResult, error) {
	res := &CompareResult{Suppliers: []users.Profile{}}
	if len(ids) == 0 {
		return res, nil
	}
	lookup, err := s.directory.BatchLookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if profile, ok := lookup.Found[id]; ok {
			res.Suppliers = append(res.Suppliers, profile)
		}
	}
	if len(lookup.NotFound) > 0 {
		s.prune(ctx, vendorID, lookup.NotFound)
	}
	return res, nil
}

func (s *service) prune(ctx context.Context, vendorID uuid.UUID, missing []uuid.UUID) {
	_, _, err := s.compare.Update(ctx, vendorID, func(ids []uuid.UUID) ([]uuid.UUID, bool) {
		set := setOf(ids)
		changed := false
		for _, id := range missing {
			if set.Remove(id) {
				changed = true
			}
		}
		return set.IDs(), changed
	})
	logCtx := s.logg.WithFields(ctx, map[string]any{"vendor_id": vendorID, "missing": len(missing)})
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "compare list prune failed")
		return
	}
	s.logg.Info(logCtx, "compare list pruned missing suppliers")
}
