// Package identity holds the pieces shared by the identity backends.
package identity

import (
	"sync"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

// Broadcaster fans auth-change notifications out to subscribed handlers.
// Handlers run synchronously on the emitting goroutine.
type Broadcaster struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]ports.AuthStateHandler
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{handlers: make(map[int]ports.AuthStateHandler)}
}

// Subscribe registers h until the returned subscription is released.
func (b *Broadcaster) Subscribe(h ports.AuthStateHandler) ports.Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return &subscription{release: func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}}
}

// Emit calls every subscribed handler with a copy of session.
func (b *Broadcaster) Emit(event domain.AuthEvent, session *domain.Session) {
	b.mu.RLock()
	handlers := make([]ports.AuthStateHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		var s *domain.Session
		if session != nil {
			cp := *session
			s = &cp
		}
		h(event, s)
	}
}

// Len reports the number of live subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

type subscription struct {
	once    sync.Once
	release func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.release)
}
