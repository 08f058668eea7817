package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/inventory-service/internal/auth"
	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
	"github.com/vasiliy-maslov/inventory-service/internal/money"
)

// allowedTransitions is only consulted when strict transitions are enabled.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

type Service interface {
	// CreateOrder atomically checks stock, prices the lines at the current
	// product price, stores the order with its items and decrements stock.
	// The returned order is read back from the store after commit.
	CreateOrder(ctx context.Context, principal auth.Principal, items []ItemRequest) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	// UpdateOrderStatus changes only the status; stock and totals are untouched.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus) (*Order, error)
	// DeleteOrder returns the ordered quantities to stock and removes the order.
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type Options struct {
	// StrictTransitions restricts status changes to the lifecycle
	// pending -> processing -> completed, with cancellation before completion.
	StrictTransitions bool
}

type service struct {
	repo   Repository
	strict bool
	now    func() time.Time
}

func NewService(repo Repository, opts Options) Service {
	return &service{
		repo:   repo,
		strict: opts.StrictTransitions,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// classify keeps domain errors as they are and marks everything else as a
// persistence failure.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidStatusTransition),
		errors.Is(err, ErrPersistence),
		errors.Is(err, auth.ErrUnauthenticated):
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}

	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("%w: items[%d].product_id is required", ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d].quantity must be greater than zero", ErrValidation, i)
		}
	}

	return nil
}

func (s *service) CreateOrder(ctx context.Context, principal auth.Principal, items []ItemRequest) (*Order, error) {
	if principal.UserID == uuid.Nil {
		return nil, auth.ErrUnauthenticated
	}
	if err := validateItems(items); err != nil {
		log.Warn().Err(err).Stringer("user_id", principal.UserID).Msg("service: rejected order request")
		return nil, err
	}

	// The same product may appear on several lines; stock is checked against the sum.
	requested := make(map[uuid.UUID]int, len(items))
	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, seen := requested[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}

	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order id: %w", err)
	}

	var created *Order
	err = s.repo.RunInTx(ctx, func(tx Tx) error {
		products, err := tx.LockProducts(ctx, productIDs)
		if err != nil {
			return err
		}

		for _, id := range productIDs {
			if _, ok := products[id]; !ok {
				return fmt.Errorf("%w: %s", ErrProductNotFound, id)
			}
		}

		for _, id := range productIDs {
			if p := products[id]; p.Quantity < requested[id] {
				return &InsufficientStockError{
					ProductID:   id,
					ProductName: p.Name,
					Available:   p.Quantity,
					Requested:   requested[id],
				}
			}
		}

		now := s.now()
		order := &Order{
			ID:         orderID,
			UserID:     uuid.NullUUID{UUID: principal.UserID, Valid: true},
			Owner:      &Owner{ID: principal.UserID, Name: principal.Name, Email: principal.Email},
			TotalPrice: decimal.Zero,
			Status:     StatusPending,
			Items:      make([]OrderItem, 0, len(items)),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, item := range items {
			line := OrderItem{
				OrderID:   orderID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     products[item.ProductID].Price,
				Product:   productRef(products[item.ProductID]),
			}
			order.TotalPrice = order.TotalPrice.Add(line.Subtotal())
			order.Items = append(order.Items, line)
		}
		if !money.InRange(order.TotalPrice) {
			return fmt.Errorf("%w: order total %s exceeds %s", ErrValidation,
				money.Format(order.TotalPrice), money.Format(money.MaxAmount))
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		for i := range order.Items {
			line := &order.Items[i]

			itemID, err := uuid.NewV4()
			if err != nil {
				return fmt.Errorf("service: failed to generate order item id: %w", err)
			}
			line.ID = itemID
			line.CreatedAt = s.now()

			if err := tx.InsertOrderItem(ctx, line); err != nil {
				return err
			}

			if err := tx.AdjustStock(ctx, line.ProductID, -line.Quantity, now); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					p := products[line.ProductID]
					return &InsufficientStockError{
						ProductID:   p.ID,
						ProductName: p.Name,
						Available:   p.Quantity,
						Requested:   requested[p.ID],
					}
				}
				return err
			}
		}

		created = order
		return nil
	})
	if err != nil {
		err = classify("create order", err)
		if errors.Is(err, ErrPersistence) {
			log.Error().Err(err).Stringer("user_id", principal.UserID).Msg("service: failed to create order")
		} else {
			log.Warn().Err(err).Stringer("user_id", principal.UserID).Msg("service: order rejected")
		}
		return nil, err
	}

	log.Info().
		Stringer("order_id", created.ID).
		Stringer("user_id", principal.UserID).
		Str("total_price", created.TotalPrice.StringFixed(2)).
		Int("items", len(created.Items)).
		Msg("service: order created")

	return s.GetOrderByID(ctx, created.ID)
}

func productRef(p inventory.Product) *ProductRef {
	return &ProductRef{Name: p.Name, SKU: p.SKU}
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, classify("fetch order", err)
	}

	return o, nil
}

func (s *service) ListOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, classify("list orders", err)
	}

	return orders, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	var previous OrderStatus
	err := s.repo.RunInTx(ctx, func(tx Tx) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		previous = current.Status

		if current.Status == status {
			return nil
		}

		if s.strict && !allowedTransitions[current.Status][status] {
			log.Warn().
				Stringer("order_id", id).
				Stringer("current_status", current.Status).
				Stringer("new_status", status).
				Msg("service: invalid status transition attempt")
			return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, current.Status, status)
		}

		return tx.SetOrderStatus(ctx, id, status, s.now())
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Stringer("new_status", status).Msg("service: order not found, cannot update status")
		}
		return nil, classify("update order status", err)
	}

	if previous != status {
		log.Info().
			Stringer("order_id", id).
			Stringer("old_status", previous).
			Stringer("new_status", status).
			Msg("service: order status updated successfully")
	}

	return s.GetOrderByID(ctx, id)
}

func (s *service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	var restored int
	err := s.repo.RunInTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}

		productIDs := make([]uuid.UUID, 0, len(o.Items))
		seen := make(map[uuid.UUID]bool, len(o.Items))
		for _, item := range o.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				productIDs = append(productIDs, item.ProductID)
			}
		}

		products, err := tx.LockProducts(ctx, productIDs)
		if err != nil {
			return err
		}

		now := s.now()
		for _, item := range o.Items {
			if _, ok := products[item.ProductID]; !ok {
				log.Warn().
					Stringer("order_id", id).
					Stringer("product_id", item.ProductID).
					Int("quantity", item.Quantity).
					Msg("service: product no longer exists, stock not restored")
				continue
			}
			if err := tx.AdjustStock(ctx, item.ProductID, item.Quantity, now); err != nil {
				return err
			}
			restored += item.Quantity
		}

		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found, cannot delete")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to delete order")
		return classify("delete order", err)
	}

	log.Info().Stringer("order_id", id).Int("units_restored", restored).Msg("service: order deleted")
	return nil
}
