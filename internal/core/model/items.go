package model

// Product is a catalog product as returned by the remote catalog.
type Product struct {
	ID                 int     `json:"id"`
	Title              string  `json:"title"`
	Price              float64 `json:"price"`
	DiscountPercentage float64 `json:"discountPercentage"`
	Thumbnail          string  `json:"thumbnail"`
}

// CartItem is a product line in a cart. Quantity is at least 1.
type CartItem struct {
	ID                 int     `json:"id"`
	Title              string  `json:"title"`
	Price              float64 `json:"price"`
	DiscountPercentage float64 `json:"discountPercentage"`
	Thumbnail          string  `json:"thumbnail"`
	Quantity           int     `json:"quantity"`
}

// NewCartItem builds a cart line of quantity 1 for the product.
func NewCartItem(p Product) CartItem {
	return CartItem{
		ID:                 p.ID,
		Title:              p.Title,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		Thumbnail:          p.Thumbnail,
		Quantity:           1,
	}
}

// FavoriteItem is a product saved to the favorites list.
type FavoriteItem struct {
	ID                 int     `json:"id"`
	Title              string  `json:"title"`
	Price              float64 `json:"price"`
	DiscountPercentage float64 `json:"discountPercentage"`
	Thumbnail          string  `json:"thumbnail"`
}

// FavoriteDepartment is a catalog category saved by name.
type FavoriteDepartment struct {
	Name string `json:"name"`
}
