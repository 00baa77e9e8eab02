// Package notify keeps the pending user notifications until the UI drains them.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

const defaultCapacity = 50

// Feed is a bounded FIFO of notifications. When full the oldest entry is dropped.
type Feed struct {
	capacity int
	log      zerolog.Logger

	mu      sync.Mutex
	pending []domain.Notification
}

var _ ports.Notifier = (*Feed)(nil)

func NewFeed(capacity int, log zerolog.Logger) *Feed {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Feed{capacity: capacity, log: log}
}

func (f *Feed) Notify(_ context.Context, n domain.Notification) {
	f.mu.Lock()
	if len(f.pending) == f.capacity {
		f.pending = f.pending[1:]
	}
	f.pending = append(f.pending, n)
	f.mu.Unlock()

	ev := f.log.Info()
	if n.Variant == domain.VariantDestructive {
		ev = f.log.Warn()
	}
	ev.Str("title", n.Title).Str("variant", string(n.Variant)).Msg(n.Description)
}

// Drain returns the pending notifications, oldest first, and empties the feed.
func (f *Feed) Drain() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	if out == nil {
		out = []domain.Notification{}
	}
	return out
}
