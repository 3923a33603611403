// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Models in dependency order
	models := []interface{}{
		// User domain - base tables
		&user.User{},
		&user.Address{},

		// Catalog domain
		&product.Brand{},
		&product.Product{},
		&product.Agency{},

		// Cart domain
		&cart.Cart{},
		&cart.CartItem{},

		// Payment configuration
		&payment.GatewayConfig{},
		&payment.PaymentMethodConfig{},

		// Order domain - dependent tables
		&order.Order{},
		&order.OrderItem{},
		&payment.Transaction{},
	}

	for _, model := range models {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed")
	return nil
}

// CreateIndexes creates additional indexes not covered by gorm tags
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		// One active cart per user; partial unique index enforces the invariant
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_active_per_user
			ON carts (user_id) WHERE status = 'active' AND user_id IS NOT NULL AND deleted_at IS NULL`,
		// One active cart per session token
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_active_per_token
			ON carts (session_token) WHERE status = 'active' AND deleted_at IS NULL`,
		// One order per checkout session; backs the idempotent createOrder
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_one_per_checkout_session
			ON orders (checkout_session_id) WHERE checkout_session_id <> '' AND deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_transactions_reference ON payment_transactions (reference)`,
	}

	for _, stmt := range indexes {
		if err := m.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// SeedInitialData seeds development data: gateways, payment methods, agencies, products
func (m *Migration) SeedInitialData() error {
	if err := m.seedGateways(); err != nil {
		return err
	}
	if err := m.seedAgencies(); err != nil {
		return err
	}
	return m.seedProducts()
}

func (m *Migration) seedGateways() error {
	var count int64
	m.db.Model(&payment.GatewayConfig{}).Count(&count)
	if count > 0 {
		return nil
	}

	stripeGw := payment.GatewayConfig{Provider: "stripe", Mode: "test", IsActive: true}
	pseGw := payment.GatewayConfig{Provider: "epayco", Mode: "test", IsActive: true}

	if err := m.db.Create(&stripeGw).Error; err != nil {
		return fmt.Errorf("failed to seed stripe gateway: %w", err)
	}
	if err := m.db.Create(&pseGw).Error; err != nil {
		return fmt.Errorf("failed to seed pse gateway: %w", err)
	}

	methods := []payment.PaymentMethodConfig{
		{Name: "Credit / Debit Card", Type: payment.MethodCreditCard, Enabled: true, MinAmount: 100000, MaxAmount: 2000000000, GatewayID: stripeGw.ID},
		{Name: "PSE Bank Transfer", Type: payment.MethodPSE, Enabled: true, MinAmount: 160000, MaxAmount: 2000000000, GatewayID: pseGw.ID},
	}
	for i := range methods {
		if err := m.db.Create(&methods[i]).Error; err != nil {
			return fmt.Errorf("failed to seed payment method: %w", err)
		}
	}
	return nil
}

func (m *Migration) seedAgencies() error {
	var count int64
	m.db.Model(&product.Agency{}).Count(&count)
	if count > 0 {
		return nil
	}

	agencies := []product.Agency{
		{Name: "Bogotá - Chapinero", City: "Bogotá", AddressLine: "Cra 13 # 54-21", IsActive: true},
		{Name: "Medellín - El Poblado", City: "Medellín", AddressLine: "Cl 10 # 43E-31", IsActive: true},
		{Name: "Cali - Granada", City: "Cali", AddressLine: "Av 9N # 14-34", IsActive: false},
	}
	for i := range agencies {
		if err := m.db.Create(&agencies[i]).Error; err != nil {
			return fmt.Errorf("failed to seed agency: %w", err)
		}
	}
	return nil
}

func (m *Migration) seedProducts() error {
	var count int64
	m.db.Model(&product.Product{}).Count(&count)
	if count > 0 {
		return nil
	}

	brand := product.Brand{Name: "Casa Verde", IsActive: true}
	if err := m.db.Create(&brand).Error; err != nil {
		return fmt.Errorf("failed to seed brand: %w", err)
	}

	products := []product.Product{
		{Name: "Ceramic Mug", SKU: "CV-MUG-001", Price: 4500000, Stock: 120, TrackStock: true, IsActive: true, BrandID: &brand.ID},
		{Name: "Linen Apron", SKU: "CV-APR-002", Price: 9800000, Stock: 2, TrackStock: true, IsActive: true, BrandID: &brand.ID},
		{Name: "Gift Card", SKU: "CV-GFT-003", Price: 10000000, Stock: 0, TrackStock: false, IsActive: true, BrandID: &brand.ID},
	}
	for i := range products {
		if err := m.db.Create(&products[i]).Error; err != nil {
			return fmt.Errorf("failed to seed product: %w", err)
		}
	}
	return nil
}
