package usecase

import (
	"context"

	"github.com/rbroggi/souqly/internal/core/model"
)

// FavoriteDepartments is the collection of favorite departments of the active identity, keyed by name.
type FavoriteDepartments struct {
	*Collection[model.FavoriteDepartment, string]
}

// NewFavoriteDepartments creates the favorite departments store.
func NewFavoriteDepartments(args CollectionArgs, optArgs ...OptArgs) *FavoriteDepartments {
	key := func(d model.FavoriteDepartment) string { return d.Name }
	return &FavoriteDepartments{Collection: newCollection(args, collectionPolicy[model.FavoriteDepartment, string]{
		name:   "favoriteDepartments",
		prefix: model.FavoriteDepartmentsKeyPrefix,
		key:    key,
		merge:  keepFirst(key),
	}, optArgs)}
}

// Add appends department unless one with the same name exists. It reports whether it was added.
func (f *FavoriteDepartments) Add(ctx context.Context, department model.FavoriteDepartment) (bool, error) {
	return f.mutate(ctx, func(items []model.FavoriteDepartment) ([]model.FavoriteDepartment, bool) {
		if f.indexOf(items, department.Name) >= 0 {
			return items, false
		}
		return append(items, department), true
	})
}

// IsFavorite reports whether the department name is a favorite.
func (f *FavoriteDepartments) IsFavorite(name string) bool {
	return f.Contains(name)
}
