package ports

import (
	"context"

	"github.com/rbroggi/souqly/internal/core/model"
)

// AccountEventHandler handles AccountEvents.
type AccountEventHandler interface {
	// Handle will receive an account event and handle it.
	Handle(ctx context.Context, event model.AccountEvent) error
}
