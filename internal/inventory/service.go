package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

const itemNotFound = "inventory item not found"

// Service exposes supplier inventory management.
type Service interface {
	List(ctx context.Context, supplierID uuid.UUID) ([]Item, error)
	Create(ctx context.Context, supplierID uuid.UUID, input CreateItemInput) (*Item, error)
	Update(ctx context.Context, supplierID, itemID uuid.UUID, input UpdateItemInput) (*Item, error)
	Delete(ctx context.Context, supplierID, itemID uuid.UUID) error
}

type itemStore interface {
	Create(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error)
	FindForSupplier(ctx context.Context, supplierID, itemID uuid.UUID) (*models.InventoryItem, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.InventoryItem, error)
	Save(ctx context.Context, item *models.InventoryItem) error
	DeleteForSupplier(ctx context.Context, supplierID, itemID uuid.UUID) error
}

type ServiceParams struct {
	Repository itemStore
	Realtime   realtime.Publisher
	Logger     *logger.Logger
}

type service struct {
	repo     itemStore
	realtime realtime.Publisher
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: params.Repository, realtime: params.Realtime, logg: logg}, nil
}

func (s *service) List(ctx context.Context, supplierID uuid.UUID) ([]Item, error) {
	rows, err := s.repo.ListBySupplier(ctx, supplierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	items := make([]Item, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return items, nil
}

func (s *service) Create(ctx context.Context, supplierID uuid.UUID, input CreateItemInput) (*Item, error) {
	model, err := input.toModel(supplierID)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, model)
	if err != nil {
		return nil, repo.Translate(err, itemNotFound)
	}
	item := FromModel(created)
	s.notify(ctx, supplierID, ChangedEvent{Change: ChangeCreated, ItemID: item.ID, Item: item})
	return item, nil
}

func (s *service) Update(ctx context.Context, supplierID, itemID uuid.UUID, input UpdateItemInput) (*Item, error) {
	if input.isEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	existing, err := s.repo.FindForSupplier(ctx, supplierID, itemID)
	if err != nil {
		return nil, repo.Translate(err, itemNotFound)
	}
	if err := input.apply(existing); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, existing); err != nil {
		return nil, repo.Translate(err, itemNotFound)
	}
	item := FromModel(existing)
	s.notify(ctx, supplierID, ChangedEvent{Change: ChangeUpdated, ItemID: item.ID, Item: item})
	return item, nil
}

func (s *service) Delete(ctx context.Context, supplierID, itemID uuid.UUID) error {
	if err := s.repo.DeleteForSupplier(ctx, supplierID, itemID); err != nil {
		return repo.Translate(err, itemNotFound)
	}
	s.notify(ctx, supplierID, ChangedEvent{Change: ChangeDeleted, ItemID: itemID})
	return nil
}

func (s *service) notify(ctx context.Context, supplierID uuid.UUID, payload ChangedEvent) {
	if s.realtime == nil {
		return
	}
	event, err := realtime.NewEvent(realtime.EventInventoryChanged, payload)
	if err == nil {
		err = s.realtime.Publish(ctx, realtime.InventoryTopic(supplierID), event)
	}
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"supplier_id": supplierID, "item_id": payload.ItemID, "error": err.Error()})
		s.logg.Warn(logCtx, "inventory realtime publish failed")
	}
}
