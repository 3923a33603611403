// internal/domain/product/entity.go
package product

import (
	"time"

	"gorm.io/gorm"
)

// Product represents a sellable catalog item
type Product struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"not null;size:255" json:"name"`
	SKU        string         `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Price      int64          `gorm:"not null" json:"price"` // In cents
	Stock      int            `gorm:"not null;default:0" json:"stock"`
	TrackStock bool           `gorm:"not null;default:true" json:"track_stock"`
	IsActive   bool           `gorm:"not null;default:true;index" json:"is_active"`
	BrandID    *uint          `gorm:"index" json:"brand_id"`
	Brand      *Brand         `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Brand represents a product line owner
type Brand struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Agency represents a physical pickup location
type Agency struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;size:150" json:"name"`
	City        string    `gorm:"not null;size:100" json:"city"`
	AddressLine string    `gorm:"not null;size:255" json:"address_line"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName overrides
func (Product) TableName() string { return "products" }
func (Brand) TableName() string   { return "brands" }
func (Agency) TableName() string  { return "agencies" }

// Available reports whether the requested quantity can be fulfilled
func (p *Product) Available(quantity int) bool {
	if !p.TrackStock {
		return true
	}
	return p.Stock >= quantity
}
