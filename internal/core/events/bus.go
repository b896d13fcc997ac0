package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Event interface {
	EventType() Kind
	EventID() string
	OccurredAt() time.Time
	Payload() interface{}
}

type BaseEvent struct {
	ID        string                 `json:"id"`
	Type      Kind                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e BaseEvent) EventType() Kind {
	return e.Type
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func (e BaseEvent) Payload() interface{} {
	return e.Data
}

type Handler func(ctx context.Context, event Event) error

type EventBus struct {
	handlers map[Kind][]Handler
	global   []Handler
	logger   *slog.Logger
	mu       sync.RWMutex
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[Kind][]Handler),
		logger:   logger,
	}
}

func (eb *EventBus) Subscribe(kind Kind, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[kind] = append(eb.handlers[kind], handler)
	eb.logger.Debug("event handler registered",
		"event_type", kind,
		"total_handlers", len(eb.handlers[kind]))
}

// SubscribeAll registers handler for every kind.
func (eb *EventBus) SubscribeAll(handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.global = append(eb.global, handler)
}

func (eb *EventBus) handlersFor(kind Kind) []Handler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	hs := make([]Handler, 0, len(eb.global)+len(eb.handlers[kind]))
	hs = append(hs, eb.global...)
	hs = append(hs, eb.handlers[kind]...)
	return hs
}

// Publish runs handlers in their own goroutines and returns immediately.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	handlers := eb.handlersFor(event.EventType())
	if len(handlers) == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
		return nil
	}

	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				eb.logger.Error("event handler failed",
					"event_type", event.EventType(),
					"event_id", event.EventID(),
					"error", err)
			}
		}(handler)
	}

	return nil
}

// PublishSync runs every handler in order and returns the first failure.
// Later handlers still run.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	handlers := eb.handlersFor(event.EventType())
	if len(handlers) == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			eb.logger.Error("event handler failed",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("handler failed for event %s: %w", event.EventType(), err)
			}
		}
	}

	return firstErr
}
