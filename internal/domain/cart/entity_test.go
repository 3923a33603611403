// internal/domain/cart/entity_test.go
package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeSummary(t *testing.T) {
	items := []CartItem{
		{ProductID: 1, Quantity: 2, Price: 150000},
		{ProductID: 2, Quantity: 1, Price: 99900},
	}

	s := ComputeSummary(items)

	assert.Equal(t, 2, s.ItemCount)
	assert.Equal(t, 3, s.TotalQuantity)
	assert.Equal(t, int64(399900), s.Subtotal)
	assert.Equal(t, int64(399900), s.TotalAmount)
}

func TestComputeSummaryEmpty(t *testing.T) {
	s := ComputeSummary(nil)

	assert.Equal(t, 0, s.ItemCount)
	assert.Equal(t, int64(0), s.TotalAmount)
}

func TestMergeLineItems(t *testing.T) {
	into := []CartItem{
		{ProductID: 1, Quantity: 2, Price: 100},
		{ProductID: 2, Quantity: 1, Price: 200},
	}
	from := []CartItem{
		{ProductID: 2, Quantity: 3, Price: 250},
		{ProductID: 3, Quantity: 1, Price: 300},
	}

	merged := MergeLineItems(into, from)

	assert.Len(t, merged, 3)

	byProduct := map[uint]CartItem{}
	for _, item := range merged {
		byProduct[item.ProductID] = item
	}

	// Untouched line survives as is
	assert.Equal(t, 2, byProduct[1].Quantity)
	// Overlapping product is quantity-additive and keeps the destination price
	assert.Equal(t, 4, byProduct[2].Quantity)
	assert.Equal(t, int64(200), byProduct[2].Price)
	// Source-only product keeps its snapshot price
	assert.Equal(t, 1, byProduct[3].Quantity)
	assert.Equal(t, int64(300), byProduct[3].Price)
}

func TestMergeLineItemsDoesNotMutateInput(t *testing.T) {
	into := []CartItem{{ProductID: 1, Quantity: 1, Price: 100}}
	from := []CartItem{{ProductID: 1, Quantity: 5, Price: 900}}

	_ = MergeLineItems(into, from)

	assert.Equal(t, 1, into[0].Quantity)
}

func TestCartExpired(t *testing.T) {
	now := time.Now()

	c := &Cart{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, c.Expired(now))

	c.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, c.Expired(now))

	// Zero expiry means no expiry
	c.ExpiresAt = time.Time{}
	assert.False(t, c.Expired(now))
}

func TestItemFor(t *testing.T) {
	c := &Cart{Items: []CartItem{
		{ProductID: 7, Quantity: 2},
	}}

	item := c.ItemFor(7)
	if assert.NotNil(t, item) {
		assert.Equal(t, 2, item.Quantity)
	}
	assert.Nil(t, c.ItemFor(8))
}
