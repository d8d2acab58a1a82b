package usecase

import (
	"context"

	"github.com/rbroggi/souqly/internal/core/model"
)

// Cart is the collection of cart lines of the active identity, keyed by product id.
type Cart struct {
	*Collection[model.CartItem, int]
}

// NewCart creates the cart store.
func NewCart(args CollectionArgs, optArgs ...OptArgs) *Cart {
	return &Cart{Collection: newCollection(args, collectionPolicy[model.CartItem, int]{
		name:   "cart",
		prefix: model.CartKeyPrefix,
		key:    func(i model.CartItem) int { return i.ID },
		merge:  sumQuantities,
	}, optArgs)}
}

// Add puts one unit of product in the cart: an existing line gets its quantity incremented,
// otherwise a line of quantity 1 is appended. It returns the resulting line.
func (c *Cart) Add(ctx context.Context, product model.Product) (model.CartItem, error) {
	var result model.CartItem
	_, err := c.mutate(ctx, func(items []model.CartItem) ([]model.CartItem, bool) {
		if idx := c.indexOf(items, product.ID); idx >= 0 {
			items[idx].Quantity++
			result = items[idx]
			return items, true
		}
		result = model.NewCartItem(product)
		return append(items, result), true
	})
	return result, err
}

// UpdateQuantity sets the quantity of the line with the given product id. A quantity of zero or
// less removes the line. Unknown ids are ignored.
func (c *Cart) UpdateQuantity(ctx context.Context, id int, quantity int) error {
	_, err := c.mutate(ctx, func(items []model.CartItem) ([]model.CartItem, bool) {
		idx := c.indexOf(items, id)
		if idx < 0 {
			return items, false
		}
		if quantity <= 0 {
			return append(items[:idx], items[idx+1:]...), true
		}
		items[idx].Quantity = quantity
		return items, true
	})
	return err
}

// TotalItems returns the sum of the quantities.
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items() {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the sum of price times quantity, without discounts.
func (c *Cart) TotalPrice() float64 {
	total := 0.0
	for _, item := range c.Items() {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// sumQuantities adds the guest quantities to the matching account lines and appends the rest.
func sumQuantities(user, guest []model.CartItem) []model.CartItem {
	merged := clone(user)
	index := make(map[int]int, len(merged))
	for i, item := range merged {
		index[item.ID] = i
	}
	for _, item := range guest {
		if i, ok := index[item.ID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
