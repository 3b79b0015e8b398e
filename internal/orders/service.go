package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/internal/repo"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox/payloads"
	"github.com/streetfoodconnect/marketplace-backend/pkg/pagination"
)

var errStaleStatus = errors.New("order status changed concurrently")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service defines order-level operations for both marketplace roles.
type Service interface {
	Create(ctx context.Context, vendorID uuid.UUID, input CreateOrderInput) (*Order, error)
	UpdateStatus(ctx context.Context, supplierID, orderID uuid.UUID, to enums.OrderStatus) (*Order, error)
	Accept(ctx context.Context, supplierID, orderID uuid.UUID) (*Order, error)
	Reject(ctx context.Context, supplierID, orderID uuid.UUID) (*Order, error)
	Get(ctx context.Context, actorID, orderID uuid.UUID) (*Order, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params ListParams) (*OrderList, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID, params ListParams) (*OrderList, error)
}

// ServiceParams bundles the order service collaborators. Realtime is
// optional; its failures never undo a committed change.
type ServiceParams struct {
	Repository Repository
	Users      userLookup
	DB         txRunner
	Outbox     outboxPublisher
	Realtime   realtime.Publisher
	Logger     *logger.Logger
}

type service struct {
	repo     Repository
	users    userLookup
	tx       txRunner
	outbox   outboxPublisher
	realtime realtime.Publisher
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repository,
		users:    params.Users,
		tx:       params.DB,
		outbox:   params.Outbox,
		realtime: params.Realtime,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, vendorID uuid.UUID, input CreateOrderInput) (*Order, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity required")
	}
	if err := s.requireSupplier(ctx, input.SupplierID); err != nil {
		return nil, err
	}
	order, err := buildOrder(vendorID, input, s.now())
	if err != nil {
		return nil, err
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		saved, err := s.repo.WithTx(tx).Create(ctx, order)
		if err != nil {
			return repo.Translate(err, "order not found")
		}
		created = saved
		return s.outbox.Emit(ctx, tx, outbox.Event{
			Type:          enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   saved.ID,
			Actor:         &outbox.ActorRef{UserID: vendorID, Role: enums.UserRoleVendor},
			Data: payloads.OrderCreatedEvent{
				OrderID:     saved.ID,
				VendorID:    saved.VendorID,
				SupplierID:  saved.SupplierID,
				TotalAmount: saved.TotalAmount.StringFixed(2),
				ItemCount:   len(saved.Items),
			},
			OccurredAt: saved.CreatedAt,
		})
	})
	if err != nil {
		return nil, wrapInternal(err, "create order")
	}

	view := FromModel(created)
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, created.ID.String()), map[string]any{
		"vendor_id":    created.VendorID,
		"supplier_id":  created.SupplierID,
		"total_amount": created.TotalAmount.StringFixed(2),
	})
	s.logg.Info(logCtx, "order created")
	s.afterCommit(ctx, created, realtime.EventOrderCreated, view)
	return view, nil
}

func (s *service) UpdateStatus(ctx context.Context, supplierID, orderID uuid.UUID, to enums.OrderStatus) (*Order, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": to})
	}

	var updated *models.Order
	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.repo.WithTx(tx)
		order, err := store.FindByID(ctx, orderID)
		if err != nil {
			return repo.Translate(err, "order not found")
		}
		if order.SupplierID != supplierID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another supplier")
		}
		from = order.Status
		if err := ValidateTransition(from, to); err != nil {
			return transitionConflict(err)
		}

		at := s.now()
		if err := store.UpdateStatus(ctx, order.ID, from, to, at); err != nil {
			if errors.Is(err, errStaleStatus) {
				return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order was updated by another request")
			}
			return err
		}
		order.Status = to
		order.UpdatedAt = at
		updated = order

		return s.outbox.Emit(ctx, tx, outbox.Event{
			Type:          enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: supplierID, Role: enums.UserRoleSupplier},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				VendorID:   order.VendorID,
				SupplierID: order.SupplierID,
				From:       from,
				To:         to,
			},
			OccurredAt: at,
		})
	})
	if err != nil {
		return nil, wrapInternal(err, "update order status")
	}

	view := FromModel(updated)
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, updated.ID.String()), map[string]any{
		"from": from,
		"to":   to,
	})
	s.logg.Info(logCtx, "order status updated")
	s.afterCommit(ctx, updated, realtime.EventOrderStatusChanged, view)
	return view, nil
}

func (s *service) Accept(ctx context.Context, supplierID, orderID uuid.UUID) (*Order, error) {
	return s.decide(ctx, supplierID, orderID, enums.OrderStatusConfirmed)
}

func (s *service) Reject(ctx context.Context, supplierID, orderID uuid.UUID) (*Order, error) {
	return s.decide(ctx, supplierID, orderID, enums.OrderStatusCancelled)
}

// decide only acts on pending orders; later stages go through UpdateStatus.
func (s *service) decide(ctx context.Context, supplierID, orderID uuid.UUID, to enums.OrderStatus) (*Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, repo.Translate(err, "order not found")
	}
	if order.SupplierID != supplierID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another supplier")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be accepted or rejected").
			WithDetails(map[string]any{"from": order.Status, "to": to, "allowed": NextStatuses(order.Status)})
	}
	return s.UpdateStatus(ctx, supplierID, orderID, to)
}

func (s *service) Get(ctx context.Context, actorID, orderID uuid.UUID) (*Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, repo.Translate(err, "order not found")
	}
	// Non-parties get the same answer as for a missing order.
	if order.VendorID != actorID && order.SupplierID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return FromModel(order), nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, params ListParams) (*OrderList, error) {
	return s.list(ctx, vendorID, params, s.repo.ListByVendor)
}

func (s *service) ListBySupplier(ctx context.Context, supplierID uuid.UUID, params ListParams) (*OrderList, error) {
	return s.list(ctx, supplierID, params, s.repo.ListBySupplier)
}

type listFunc func(ctx context.Context, ownerID uuid.UUID, q ListQuery) ([]models.Order, *pagination.Cursor, error)

func (s *service) list(ctx context.Context, ownerID uuid.UUID, params ListParams, fetch listFunc) (*OrderList, error) {
	q := ListQuery{Limit: params.Limit}
	if raw := strings.TrimSpace(params.Status); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		q.Status = &status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		q.Cursor = cursor
	}

	rows, next, err := fetch(ctx, ownerID, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]Order, 0, len(rows))}
	for i := range rows {
		out.Orders = append(out.Orders, *FromModel(&rows[i]))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) requireSupplier(ctx context.Context, supplierID uuid.UUID) error {
	if supplierID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "supplier_id is required")
	}
	supplier, err := s.users.FindByID(ctx, supplierID)
	if err != nil {
		if repo.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeValidation, "supplier not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup supplier")
	}
	if supplier.Role != enums.UserRoleSupplier {
		return pkgerrors.New(pkgerrors.CodeValidation, "supplier_id must reference a supplier")
	}
	return nil
}

// afterCommit pushes realtime updates to both parties. Failures are logged only.
func (s *service) afterCommit(ctx context.Context, order *models.Order, eventType string, view *Order) {
	if s.realtime != nil {
		event, err := realtime.NewEvent(eventType, view)
		if err == nil {
			for _, party := range []uuid.UUID{order.VendorID, order.SupplierID} {
				if err = s.realtime.Publish(ctx, realtime.OrdersTopic(party), event); err != nil {
					break
				}
			}
		}
		if err != nil {
			s.logg.Warn(s.logg.WithField(s.logg.WithOrderID(ctx, order.ID.String()), "error", err.Error()), "order realtime publish failed")
		}
	}
}

func buildOrder(vendorID uuid.UUID, input CreateOrderInput, now time.Time) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	items := make([]models.OrderLineItem, 0, len(input.Items))
	total := decimal.Zero
	for i, line := range input.Items {
		name := strings.TrimSpace(line.Name)
		unit := strings.TrimSpace(line.Unit)
		switch {
		case name == "":
			return nil, lineError(i, "name is required")
		case unit == "":
			return nil, lineError(i, "unit is required")
		case !line.Quantity.IsPositive():
			return nil, lineError(i, "quantity must be greater than zero")
		case line.UnitPrice.IsNegative():
			return nil, lineError(i, "price must not be negative")
		}
		lineTotal := line.Quantity.Mul(line.UnitPrice).Round(2)
		if line.Total != nil && !line.Total.Round(2).Equal(lineTotal) {
			return nil, lineError(i, "total does not match quantity x price").
				WithDetails(map[string]any{"index": i, "expected": lineTotal.StringFixed(2)})
		}
		total = total.Add(lineTotal)
		items = append(items, models.OrderLineItem{
			Name:      name,
			Quantity:  line.Quantity,
			Unit:      unit,
			UnitPrice: line.UnitPrice,
			Total:     lineTotal,
		})
	}
	if input.TotalAmount != nil && !input.TotalAmount.Round(2).Equal(total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total_amount does not match line totals").
			WithDetails(map[string]any{"expected": total.StringFixed(2)})
	}
	return &models.Order{
		VendorID:        vendorID,
		SupplierID:      input.SupplierID,
		TotalAmount:     total,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		Notes:           trimmedOrNil(input.Notes),
		DeliveryAddress: trimmedOrNil(input.DeliveryAddress),
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func lineError(index int, msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: %s", index, msg)).
		WithDetails(map[string]any{"index": index})
}

func transitionConflict(err error) error {
	var te *TransitionError
	if !errors.As(err, &te) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, te, te.Error()).
		WithDetails(map[string]any{"from": te.From, "to": te.To, "allowed": te.Allowed})
}

func wrapInternal(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
