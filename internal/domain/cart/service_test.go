// internal/domain/cart/service_test.go
package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/product"
)

// fakeCatalog scripts catalog lookups per product id
type fakeCatalog struct {
	products map[uint]*product.Product
	lookupFn func(id uint) error
}

func (f *fakeCatalog) ActiveProduct(_ context.Context, id uint) (*product.Product, error) {
	if f.lookupFn != nil {
		if err := f.lookupFn(id); err != nil {
			return nil, err
		}
	}
	p, ok := f.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) ProductsByIDs(_ context.Context, ids []uint) (map[uint]*product.Product, error) {
	out := make(map[uint]*product.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type serviceFixture struct {
	svc     *Service
	repo    *fakeRepo
	catalog *fakeCatalog
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := newFakeRepo()
	store := newFakeSessionStore()
	mgr := NewSessionManager(repo, store, 24*time.Hour, quietLog())
	catalog := &fakeCatalog{products: map[uint]*product.Product{
		1: {ID: 1, Name: "Coffee beans", SKU: "CF-001", Price: 5000, Stock: 10, TrackStock: true, IsActive: true},
	}}
	return &serviceFixture{
		svc:     NewService(repo, mgr, catalog, quietLog()),
		repo:    repo,
		catalog: catalog,
	}
}

func TestAddItemCreatesCartForGuest(t *testing.T) {
	fx := newServiceFixture(t)

	view, err := fx.svc.AddItem(context.Background(), nil, "", &AddItemRequest{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.NotEmpty(t, view.SessionToken)
	assert.Equal(t, int64(10000), view.Summary.Subtotal)
}

func TestAddItemUnknownProduct(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.AddItem(context.Background(), nil, "", &AddItemRequest{ProductID: 9, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestAddItemCatalogFailurePassesThrough(t *testing.T) {
	fx := newServiceFixture(t)
	dbDown := errors.New("connection refused")
	fx.catalog.lookupFn = func(uint) error { return dbDown }

	// An infrastructure failure is not the customer's fault and must not be
	// reported as an unavailable product
	_, err := fx.svc.AddItem(context.Background(), nil, "", &AddItemRequest{ProductID: 1, Quantity: 1})
	assert.ErrorIs(t, err, dbDown)
	assert.NotErrorIs(t, err, ErrProductUnavailable)
}

func TestAddItemRejectsOverselling(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	view, err := fx.svc.AddItem(ctx, nil, "", &AddItemRequest{ProductID: 1, Quantity: 8})
	require.NoError(t, err)

	var stockErr *InsufficientStockError
	_, err = fx.svc.AddItem(ctx, nil, view.SessionToken, &AddItemRequest{ProductID: 1, Quantity: 5})
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 13, stockErr.Requested)
	assert.Equal(t, 10, stockErr.Available)
}

func TestUpdateItemCatalogFailurePassesThrough(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	view, err := fx.svc.AddItem(ctx, nil, "", &AddItemRequest{ProductID: 1, Quantity: 1})
	require.NoError(t, err)

	dbDown := errors.New("connection refused")
	fx.catalog.lookupFn = func(uint) error { return dbDown }

	_, err = fx.svc.UpdateItem(ctx, nil, view.SessionToken, 1, 3)
	assert.ErrorIs(t, err, dbDown)
}

func TestUpdateItemToZeroRemovesLine(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	view, err := fx.svc.AddItem(ctx, nil, "", &AddItemRequest{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	view, err = fx.svc.UpdateItem(ctx, nil, view.SessionToken, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}
