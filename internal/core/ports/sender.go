package ports

import (
	"context"

	"github.com/rbroggi/souqly/internal/core/model"
)

// Sender is the port for publishing/informing/sending outbound account-events.
type Sender interface {
	// Send sends account-event data.
	Send(ctx context.Context, event model.AccountEvent) error
}
