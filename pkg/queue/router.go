package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoHandler is returned for deliveries of a queue nobody registered for.
var ErrNoHandler = errors.New("no handler registered")

// Router dispatches deliveries to one handler per logical queue.
type Router struct {
	mu       sync.RWMutex
	handlers map[Queue]Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[Queue]Handler, len(Queues))}
}

// Handle registers h for q, replacing any previous handler.
func (r *Router) Handle(q Queue, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[q] = h
}

// Dispatch is a Handler that routes d by its queue.
func (r *Router) Dispatch(ctx context.Context, d Delivery) error {
	r.mu.RLock()
	h, ok := r.handlers[d.Queue]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w for queue %q", ErrNoHandler, d.Queue)
	}

	return h(ctx, d)
}
