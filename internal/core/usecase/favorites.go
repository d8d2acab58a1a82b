package usecase

import (
	"context"

	"github.com/rbroggi/souqly/internal/core/model"
)

// Favorites is the collection of favorite products of the active identity, keyed by product id.
type Favorites struct {
	*Collection[model.FavoriteItem, int]
}

// NewFavorites creates the favorites store.
func NewFavorites(args CollectionArgs, optArgs ...OptArgs) *Favorites {
	key := func(i model.FavoriteItem) int { return i.ID }
	return &Favorites{Collection: newCollection(args, collectionPolicy[model.FavoriteItem, int]{
		name:   "favorites",
		prefix: model.FavoritesKeyPrefix,
		key:    key,
		merge:  keepFirst(key),
	}, optArgs)}
}

// Add appends item unless a favorite with the same id exists. It reports whether it was added.
func (f *Favorites) Add(ctx context.Context, item model.FavoriteItem) (bool, error) {
	return f.mutate(ctx, func(items []model.FavoriteItem) ([]model.FavoriteItem, bool) {
		if f.indexOf(items, item.ID) >= 0 {
			return items, false
		}
		return append(items, item), true
	})
}

// IsFavorite reports whether the product id is a favorite.
func (f *Favorites) IsFavorite(id int) bool {
	return f.Contains(id)
}
