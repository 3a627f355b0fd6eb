package shared

import (
	"context"
	"sync"
)

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in.
	// An empty slice means the handler receives all events.
	EventTypes() []string
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// InMemoryEventBus is a synchronous in-process event bus. Handlers run on
// the publisher's goroutine after the originating transaction has committed;
// handler errors are collected but never fail the publish.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{}
}

// Subscribe registers a handler
func (b *InMemoryEventBus) Subscribe(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish delivers the events to every interested handler
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...DomainEvent) error {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, event := range events {
		for _, handler := range handlers {
			if !handlerWants(handler, event.EventType()) {
				continue
			}
			_ = handler.Handle(ctx, event)
		}
	}
	return nil
}

func handlerWants(handler EventHandler, eventType string) bool {
	types := handler.EventTypes()
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == eventType {
			return true
		}
	}
	return false
}

var _ EventPublisher = (*InMemoryEventBus)(nil)
