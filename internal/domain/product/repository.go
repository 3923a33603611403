// internal/domain/product/repository.go
package product

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a catalog row does not exist
var ErrNotFound = errors.New("product not found")

// Repository provides read access to the catalog
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ActiveProduct retrieves an active product by id
func (r *Repository) ActiveProduct(ctx context.Context, id uint) (*Product, error) {
	var p Product
	err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return &p, nil
}

// ProductsByIDs retrieves products by id, keyed by id
func (r *Repository) ProductsByIDs(ctx context.Context, ids []uint) (map[uint]*Product, error) {
	var rows []Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}
	out := make(map[uint]*Product, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// Agency retrieves an agency by id
func (r *Repository) Agency(ctx context.Context, id uint) (*Agency, error) {
	var a Agency
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve agency: %w", err)
	}
	return &a, nil
}

// AgencyActive reports whether an agency can receive pickup orders
func (r *Repository) AgencyActive(ctx context.Context, agencyID uint) (bool, error) {
	a, err := r.Agency(ctx, agencyID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.IsActive, nil
}

// ActiveAgencies lists agencies available for pickup
func (r *Repository) ActiveAgencies(ctx context.Context) ([]Agency, error) {
	var rows []Agency
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("city, name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	return rows, nil
}
