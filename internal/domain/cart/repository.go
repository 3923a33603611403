// internal/domain/cart/repository.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the cart aggregate. All line-item mutations lock the
// parent cart row for the duration of the read-modify-write.
type Repository interface {
	Create(ctx context.Context, c *Cart) error
	CartByID(ctx context.Context, id uint) (*Cart, error)
	ActiveCartByUser(ctx context.Context, userID uint) (*Cart, error)
	ActiveCartByToken(ctx context.Context, token string) (*Cart, error)
	AddItem(ctx context.Context, cartID, productID uint, quantity int, price int64) error
	SetItemQuantity(ctx context.Context, cartID, productID uint, quantity int) error
	ClearItems(ctx context.Context, cartID uint) error
	UpdateStatus(ctx context.Context, cartID uint, status CartStatus) error
	ReOwn(ctx context.Context, cartID, userID uint) error
	MergeInto(ctx context.Context, guestCartID, userCartID uint) error
}

// GormRepository is the PostgreSQL-backed cart repository
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new cart repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Create persists a new cart
func (r *GormRepository) Create(ctx context.Context, c *Cart) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

// CartByID retrieves a cart with its items
func (r *GormRepository) CartByID(ctx context.Context, id uint) (*Cart, error) {
	var c Cart
	err := r.db.WithContext(ctx).Preload("Items").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	return &c, nil
}

// ActiveCartByUser retrieves the user's active cart with items, or
// ErrCartNotFound. The one-active-cart-per-user invariant is enforced by a
// partial unique index, so First is deterministic.
func (r *GormRepository) ActiveCartByUser(ctx context.Context, userID uint) (*Cart, error) {
	var c Cart
	err := r.db.WithContext(ctx).Preload("Items").
		Where("user_id = ? AND status = ?", userID, CartStatusActive).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user cart: %w", err)
	}
	return &c, nil
}

// ActiveCartByToken retrieves the active cart for a session token
func (r *GormRepository) ActiveCartByToken(ctx context.Context, token string) (*Cart, error) {
	var c Cart
	err := r.db.WithContext(ctx).Preload("Items").
		Where("session_token = ? AND status = ?", token, CartStatusActive).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session cart: %w", err)
	}
	return &c, nil
}

// AddItem adds quantity of a product to the cart, incrementing the existing
// line when one exists. The parent cart row is locked so concurrent
// mutations on the same cart are serialized.
func (r *GormRepository) AddItem(ctx context.Context, cartID, productID uint, quantity int, price int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCart(tx, cartID); err != nil {
			return err
		}

		var item CartItem
		err := tx.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			item = CartItem{
				CartID:    cartID,
				ProductID: productID,
				Quantity:  quantity,
				Price:     price,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create cart item: %w", err)
			}
			return touchCart(tx, cartID)
		}
		if err != nil {
			return fmt.Errorf("failed to read cart item: %w", err)
		}

		item.Quantity += quantity
		item.Price = price // Refresh the snapshot in case the price changed
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		return touchCart(tx, cartID)
	})
}

// SetItemQuantity sets the quantity of a line item. Quantity 0 removes the
// row entirely; zero-quantity rows are never stored.
func (r *GormRepository) SetItemQuantity(ctx context.Context, cartID, productID uint, quantity int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCart(tx, cartID); err != nil {
			return err
		}

		var item CartItem
		err := tx.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read cart item: %w", err)
		}

		if quantity == 0 {
			if err := tx.Delete(&item).Error; err != nil {
				return fmt.Errorf("failed to remove cart item: %w", err)
			}
			return touchCart(tx, cartID)
		}

		item.Quantity = quantity
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		return touchCart(tx, cartID)
	})
}

// ClearItems removes all line items from a cart
func (r *GormRepository) ClearItems(ctx context.Context, cartID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCart(tx, cartID); err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cartID).Delete(&CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart items: %w", err)
		}
		return touchCart(tx, cartID)
	})
}

// UpdateStatus moves the cart to a new lifecycle state
func (r *GormRepository) UpdateStatus(ctx context.Context, cartID uint, status CartStatus) error {
	result := r.db.WithContext(ctx).Model(&Cart{}).
		Where("id = ?", cartID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update cart status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCartNotFound
	}
	return nil
}

// ReOwn assigns a guest cart to a user, preserving the cart row and its
// items. Fails if the cart is not active anymore or the user already has an
// active cart (the caller must merge instead).
func (r *GormRepository) ReOwn(ctx context.Context, cartID, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, cartID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock cart: %w", err)
		}
		if c.Status != CartStatusActive {
			return ErrCartNotFound
		}

		var count int64
		if err := tx.Model(&Cart{}).
			Where("user_id = ? AND status = ? AND id <> ?", userID, CartStatusActive, cartID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for existing user cart: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("user %d already has an active cart", userID)
		}

		return tx.Model(&c).Update("user_id", userID).Error
	})
}

// MergeInto merges the guest cart's line items into the user cart,
// quantity-additive per product, and marks the guest cart abandoned. Both
// cart rows are locked for the whole merge; lock order is lower id first so
// two concurrent merges cannot deadlock.
func (r *GormRepository) MergeInto(ctx context.Context, guestCartID, userCartID uint) error {
	if guestCartID == userCartID {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, second := guestCartID, userCartID
		if second < first {
			first, second = second, first
		}
		if err := lockCart(tx, first); err != nil {
			return err
		}
		if err := lockCart(tx, second); err != nil {
			return err
		}

		var guestItems, userItems []CartItem
		if err := tx.Where("cart_id = ?", guestCartID).Find(&guestItems).Error; err != nil {
			return fmt.Errorf("failed to read guest cart items: %w", err)
		}
		if err := tx.Where("cart_id = ?", userCartID).Find(&userItems).Error; err != nil {
			return fmt.Errorf("failed to read user cart items: %w", err)
		}

		for _, merged := range MergeLineItems(userItems, guestItems) {
			if merged.ID != 0 {
				if err := tx.Model(&CartItem{}).Where("id = ?", merged.ID).
					Update("quantity", merged.Quantity).Error; err != nil {
					return fmt.Errorf("failed to update merged item: %w", err)
				}
				continue
			}
			item := CartItem{
				CartID:    userCartID,
				ProductID: merged.ProductID,
				Quantity:  merged.Quantity,
				Price:     merged.Price,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create merged item: %w", err)
			}
		}

		if err := tx.Model(&Cart{}).Where("id = ?", guestCartID).
			Update("status", CartStatusAbandoned).Error; err != nil {
			return fmt.Errorf("failed to abandon guest cart: %w", err)
		}

		return touchCart(tx, userCartID)
	})
}

// lockCart acquires a FOR UPDATE lock on a cart row
func lockCart(tx *gorm.DB, cartID uint) error {
	var c Cart
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").First(&c, cartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCartNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock cart: %w", err)
	}
	return nil
}

func touchCart(tx *gorm.DB, cartID uint) error {
	return tx.Model(&Cart{}).Where("id = ?", cartID).
		Update("updated_at", time.Now().UTC()).Error
}
