// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrOrderNotFound is returned when no order matches the request
	ErrOrderNotFound = errors.New("order not found")

	// ErrEmptyCart is returned when order creation finds no line items
	ErrEmptyCart = errors.New("cart is empty")
)

// InvalidTransitionError is returned for a status change the table forbids
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition from %s to %s", e.From, e.To)
}

// Service handles order business logic
type Service struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewService creates a new order service
func NewService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{db: db, log: log}
}

// CreateFromCartInput carries everything needed to materialize an order
type CreateFromCartInput struct {
	CheckoutSessionID string
	CartID            uint
	UserID            uint
	DeliveryType      DeliveryType
	DeliveryAddressID *uint
	PickupAgencyID    *uint
	PaymentMethodID   uint
	ShippingFee       int64
	Currency          string
}

// CreateFromCart materializes an order from the live cart. The cart row is
// locked while its items are re-read and snapshotted, so a concurrent
// add-to-cart cannot produce a torn snapshot. The cart itself is left
// untouched; marking it converted is the surrounding flow's decision.
func (s *Service) CreateFromCart(ctx context.Context, in CreateFromCartInput) (*Order, error) {
	var created Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// An order for this checkout session may already exist if a previous
		// call crashed after committing. Hand it back instead of creating a
		// sibling; the unique index on checkout_session_id backs this up.
		if in.CheckoutSessionID != "" {
			var existing Order
			err := tx.Preload("Items").
				Where("checkout_session_id = ?", in.CheckoutSessionID).
				First(&existing).Error
			if err == nil {
				created = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check for existing order: %w", err)
			}
		}

		var c cart.Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").First(&c, in.CartID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cart.ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock cart: %w", err)
		}
		if len(c.Items) == 0 {
			return ErrEmptyCart
		}

		ids := make([]uint, 0, len(c.Items))
		for _, item := range c.Items {
			ids = append(ids, item.ProductID)
		}
		var products []product.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return fmt.Errorf("failed to load products for snapshot: %w", err)
		}
		byID := make(map[uint]*product.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		// Final stock validation against the live catalog
		for _, item := range c.Items {
			prod, ok := byID[item.ProductID]
			if !ok || !prod.IsActive {
				return fmt.Errorf("product %d is no longer available", item.ProductID)
			}
			if !prod.Available(item.Quantity) {
				return &cart.InsufficientStockError{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: prod.Stock,
				}
			}
		}

		summary := cart.ComputeSummary(c.Items)
		summary.ShippingCost = in.ShippingFee
		total := summary.Subtotal - summary.DiscountAmount + summary.ShippingCost + summary.TaxAmount

		created = Order{
			CheckoutSessionID: in.CheckoutSessionID,
			UserID:            in.UserID,
			CartID:            c.ID,
			Status:            StatusPending,
			DeliveryType:      in.DeliveryType,
			DeliveryAddressID: in.DeliveryAddressID,
			PickupAgencyID:    in.PickupAgencyID,
			PaymentMethodID:   in.PaymentMethodID,
			SubtotalAmount:    summary.Subtotal,
			DiscountAmount:    summary.DiscountAmount,
			ShippingAmount:    summary.ShippingCost,
			TaxAmount:         summary.TaxAmount,
			TotalAmount:       total,
			Currency:          in.Currency,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		created.OrderNumber = GenerateOrderNumber(created.ID, time.Now().UTC())
		if err := tx.Model(&created).Update("order_number", created.OrderNumber).Error; err != nil {
			return fmt.Errorf("failed to set order number: %w", err)
		}

		for _, item := range c.Items {
			prod := byID[item.ProductID]
			orderItem := OrderItem{
				OrderID:    created.ID,
				ProductID:  item.ProductID,
				SKU:        prod.SKU,
				Name:       prod.Name,
				Quantity:   item.Quantity,
				Price:      item.Price,
				TotalPrice: item.Price * int64(item.Quantity),
			}
			if err := tx.Create(&orderItem).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			created.Items = append(created.Items, orderItem)

			// Reserve stock for tracked products
			if prod.TrackStock {
				result := tx.Model(&product.Product{}).
					Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
					UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
				if result.Error != nil {
					return fmt.Errorf("failed to reserve stock: %w", result.Error)
				}
				if result.RowsAffected == 0 {
					return &cart.InsufficientStockError{
						ProductID: item.ProductID,
						Requested: item.Quantity,
						Available: prod.Stock,
					}
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     created.ID,
		"order_number": created.OrderNumber,
		"user_id":      in.UserID,
		"total":        created.TotalAmount,
	}).Info("Order created")

	return &created, nil
}

// GetOrder retrieves a single order by id
func (s *Service) GetOrder(ctx context.Context, id uint) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).Preload("Items").First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &o, nil
}

// GetUserOrder retrieves an order only if it belongs to the user
func (s *Service) GetUserOrder(ctx context.Context, userID, orderID uint) (*Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ListResponse represents a paginated order listing
type ListResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// ListUserOrders retrieves a user's orders, newest first
func (s *Service) ListUserOrders(ctx context.Context, userID uint, page, limit int) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := s.db.WithContext(ctx).Model(&Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	if err := query.Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ListResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// Transition moves an order to a new status, enforcing the append-only
// transition table. The row is locked so concurrent updates serialize.
func (s *Service) Transition(ctx context.Context, orderID uint, to Status) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		if !CanTransition(o.Status, to) {
			return &InvalidTransitionError{From: o.Status, To: to}
		}

		return tx.Model(&o).Update("status", to).Error
	})
}

// Cancel cancels an order while it is still cancellable
func (s *Service) Cancel(ctx context.Context, userID, orderID uint) error {
	o, err := s.GetUserOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if !o.CanBeCancelled() {
		return &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}
	return s.Transition(ctx, orderID, StatusCancelled)
}
