package ports

import (
	"context"

	"github.com/sociallab/sociallab/internal/core/domain"
)

// Scheduler runs work on a later turn, outside the caller's stack. Tasks sharing
// a key run in submission order.
type Scheduler interface {
	Submit(key string, task func(ctx context.Context))
}

// Notifier surfaces transient messages to the user.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}
