package users

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

const (
	defaultLookupChunkSize = 200
	maxLookupConcurrency   = 4
)

// ProfileLookupResult partitions a batch lookup. Every requested id lands in
// exactly one of Found, NotFound or Failed.
type ProfileLookupResult struct {
	Found    map[uuid.UUID]Profile
	NotFound []uuid.UUID
	Failed   map[uuid.UUID]error
}

// Service exposes profile reads and writes.
type Service interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*Profile, error)
	ListSuppliers(ctx context.Context, q SupplierQuery) ([]Profile, error)
	BatchLookup(ctx context.Context, ids []uuid.UUID) (ProfileLookupResult, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	SearchSuppliers(ctx context.Context, q SupplierQuery) ([]models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*models.User, error)
}

type ServiceParams struct {
	Repository userStore
	Logger     *logger.Logger
	ChunkSize  int
}

type service struct {
	repo      userStore
	logg      *logger.Logger
	chunkSize int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("users repository required")
	}
	chunk := params.ChunkSize
	if chunk <= 0 {
		chunk = defaultLookupChunkSize
	}
	return &service{repo: params.Repository, logg: params.Logger, chunkSize: chunk}, nil
}

func (s *service) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.Translate(err, "user not found")
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*Profile, error) {
	if patch.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no profile fields to update")
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank").
				WithDetails(map[string]any{"field": "name"})
		}
		patch.Name = &trimmed
	}
	user, err := s.repo.UpdateProfile(ctx, id, patch)
	if err != nil {
		return nil, repo.Translate(err, "user not found")
	}
	return FromModel(user), nil
}

func (s *service) ListSuppliers(ctx context.Context, q SupplierQuery) ([]Profile, error) {
	rows, err := s.repo.SearchSuppliers(ctx, q)
	if err != nil {
		return nil, repo.Translate(err, "suppliers not found")
	}
	out := make([]Profile, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// BatchLookup resolves profiles with chunked IN queries that run concurrently.
// A failed chunk marks its ids as Failed and the partial result is still
// returned; the error is non-nil only when every chunk failed.
func (s *service) BatchLookup(ctx context.Context, ids []uuid.UUID) (ProfileLookupResult, error) {
	result := ProfileLookupResult{
		Found:  map[uuid.UUID]Profile{},
		Failed: map[uuid.UUID]error{},
	}
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return result, nil
	}
	chunks := chunkIDs(unique, s.chunkSize)

	var (
		mu       sync.Mutex
		combined error
		failures int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookupConcurrency)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			rows, err := s.repo.FindByIDs(gctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				combined = multierr.Append(combined, fmt.Errorf("lookup chunk of %d: %w", len(chunk), err))
				for _, id := range chunk {
					result.Failed[id] = err
				}
				return nil
			}
			for i := range rows {
				result.Found[rows[i].ID] = *FromModel(&rows[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, id := range unique {
		if _, ok := result.Found[id]; ok {
			continue
		}
		if _, ok := result.Failed[id]; ok {
			continue
		}
		result.NotFound = append(result.NotFound, id)
	}

	if combined != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"requested":     len(unique),
			"failed_chunks": failures,
			"total_chunks":  len(chunks),
			"error":         combined.Error(),
		})
		s.logg.Warn(logCtx, "profile batch lookup partially failed")
	}
	if failures == len(chunks) {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, combined, "profile lookup failed")
	}
	return result, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunkIDs(ids []uuid.UUID, size int) [][]uuid.UUID {
	var chunks [][]uuid.UUID
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// RoleOf returns the role of a found profile, or "" when the id was not resolved.
func (r ProfileLookupResult) RoleOf(id uuid.UUID) enums.UserRole {
	if p, ok := r.Found[id]; ok {
		return p.Role
	}
	return ""
}
