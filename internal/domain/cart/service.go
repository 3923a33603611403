// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/product"
)

// ProductCatalog is the read surface of the catalog the cart needs for
// validation and item presentation.
type ProductCatalog interface {
	ActiveProduct(ctx context.Context, id uint) (*product.Product, error)
	ProductsByIDs(ctx context.Context, ids []uint) (map[uint]*product.Product, error)
}

// Service handles cart business logic
type Service struct {
	repo     Repository
	sessions *SessionManager
	catalog  ProductCatalog
	log      *logrus.Logger
}

// NewService creates a new cart service
func NewService(repo Repository, sessions *SessionManager, catalog ProductCatalog, log *logrus.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		catalog:  catalog,
		log:      log,
	}
}

// ItemView represents a cart item with product details
type ItemView struct {
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     int64            `json:"price"`
	Product   *product.Product `json:"product,omitempty"`
	AddedAt   time.Time        `json:"added_at"`
}

// CartView represents a shopping cart with items and summary
type CartView struct {
	CartID       uint       `json:"cart_id,omitempty"`
	SessionToken string     `json:"session_token,omitempty"`
	UserID       *uint      `json:"user_id,omitempty"`
	Items        []ItemView `json:"items"`
	Summary      Summary    `json:"summary"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AddItemRequest represents add to cart request
type AddItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// UpdateItemRequest represents update cart item request
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// GetCart retrieves the cart for a user or session token. A request that
// resolves to nothing gets an empty view and no rows are created.
func (s *Service) GetCart(ctx context.Context, userID *uint, token string) (*CartView, error) {
	resolved, err := s.sessions.ResolveCart(ctx, userID, token, false)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, resolved)
}

// AddItem adds a product to the cart, creating a cart (and session token)
// if the request has none yet.
func (s *Service) AddItem(ctx context.Context, userID *uint, token string, req *AddItemRequest) (*CartView, error) {
	prod, err := s.activeProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.sessions.ResolveCart(ctx, userID, token, true)
	if err != nil {
		return nil, err
	}
	c := resolved.Cart

	// Stock is validated against the resulting total line quantity
	newQuantity := req.Quantity
	if existing := c.ItemFor(req.ProductID); existing != nil {
		newQuantity += existing.Quantity
	}
	if !prod.Available(newQuantity) {
		return nil, &InsufficientStockError{
			ProductID: req.ProductID,
			Requested: newQuantity,
			Available: prod.Stock,
		}
	}

	if err := s.repo.AddItem(ctx, c.ID, req.ProductID, req.Quantity, prod.Price); err != nil {
		return nil, err
	}

	return s.freshView(ctx, c.ID, resolved.Token)
}

// UpdateItem sets the quantity of a cart line. Quantity 0 removes the line.
func (s *Service) UpdateItem(ctx context.Context, userID *uint, token string, productID uint, quantity int) (*CartView, error) {
	resolved, err := s.sessions.ResolveCart(ctx, userID, token, false)
	if err != nil {
		return nil, err
	}
	if resolved.Ephemeral {
		return nil, ErrCartNotFound
	}
	c := resolved.Cart

	if quantity > 0 {
		prod, err := s.activeProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !prod.Available(quantity) {
			return nil, &InsufficientStockError{
				ProductID: productID,
				Requested: quantity,
				Available: prod.Stock,
			}
		}
	}

	if err := s.repo.SetItemQuantity(ctx, c.ID, productID, quantity); err != nil {
		return nil, err
	}

	return s.freshView(ctx, c.ID, resolved.Token)
}

// RemoveItem removes a product line from the cart
func (s *Service) RemoveItem(ctx context.Context, userID *uint, token string, productID uint) (*CartView, error) {
	return s.UpdateItem(ctx, userID, token, productID, 0)
}

// Clear removes all items from the cart
func (s *Service) Clear(ctx context.Context, userID *uint, token string) error {
	resolved, err := s.sessions.ResolveCart(ctx, userID, token, false)
	if err != nil {
		return err
	}
	if resolved.Ephemeral {
		return nil // Nothing to clear
	}
	return s.repo.ClearItems(ctx, resolved.Cart.ID)
}

// activeProduct looks up a product for validation. Only a missing or
// inactive product is the customer's problem; a failing catalog is ours and
// passes through untranslated.
func (s *Service) activeProduct(ctx context.Context, productID uint) (*product.Product, error) {
	prod, err := s.catalog.ActiveProduct(ctx, productID)
	if errors.Is(err, product.ErrNotFound) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, err
	}
	return prod, nil
}

// freshView re-reads a cart and builds its view
func (s *Service) freshView(ctx context.Context, cartID uint, token string) (*CartView, error) {
	c, err := s.repo.CartByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, &ResolvedCart{Cart: c, Token: token})
}

func (s *Service) buildView(ctx context.Context, resolved *ResolvedCart) (*CartView, error) {
	c := resolved.Cart

	view := &CartView{
		CartID:       c.ID,
		SessionToken: resolved.Token,
		UserID:       c.UserID,
		Items:        make([]ItemView, 0, len(c.Items)),
		Summary:      ComputeSummary(c.Items),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}

	if len(c.Items) == 0 {
		return view, nil
	}

	ids := make([]uint, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		// Presentation detail only; the cart itself is intact
		s.log.WithError(err).Warn("Failed to load product details for cart view")
		products = map[uint]*product.Product{}
	}

	for _, item := range c.Items {
		view.Items = append(view.Items, ItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Product:   products[item.ProductID],
			AddedAt:   item.CreatedAt,
		})
	}

	return view, nil
}
