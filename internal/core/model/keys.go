package model

// Keys of the persisted key space.
const (
	CurrentUserKey = "currentUser"
	AuthFlagKey    = "authFlag"
	UsersKey       = "users"

	ProfileKeyPrefix             = "profile_"
	CartKeyPrefix                = "cart_"
	FavoritesKeyPrefix           = "favorites_"
	FavoriteDepartmentsKeyPrefix = "favoriteDepartments_"

	// GuestDiscriminator scopes collections of the anonymous identity.
	GuestDiscriminator = "guest"
)

// ProfileKey is the key of the per-account profile shell.
func ProfileKey(userID string) string {
	return ProfileKeyPrefix + userID
}

// CollectionKey is the key of the collection with the given prefix owned by the identity.
func CollectionKey(prefix string, identity Identity) string {
	return prefix + identity.Discriminator()
}

// Profile is the per-account profile shell written at registration.
type Profile struct {
	ID                  string               `json:"id"`
	User                Account              `json:"user"`
	Cart                []CartItem           `json:"cart"`
	Favorites           []FavoriteItem       `json:"favorites"`
	FavoriteDepartments []FavoriteDepartment `json:"favoriteDepartments"`
}

// NewProfile builds an empty profile shell for the account.
func NewProfile(account Account) Profile {
	return Profile{
		ID:                  account.ID,
		User:                account.Public(),
		Cart:                []CartItem{},
		Favorites:           []FavoriteItem{},
		FavoriteDepartments: []FavoriteDepartment{},
	}
}
