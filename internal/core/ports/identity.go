package ports

import "github.com/rbroggi/souqly/internal/core/model"

// IdentityProvider exposes the active identity to the stores that are scoped by it.
type IdentityProvider interface {
	// Current returns the active identity.
	Current() model.Identity

	// OnChange registers listener. It is invoked immediately with the active identity and then
	// on every identity change. The returned function unregisters it.
	OnChange(listener func(model.Identity)) (unsubscribe func())
}
