package events

import (
	"context"
	"log/slog"
)

// Notifier emits lifecycle events. Emission never fails the caller: handler
// errors and construction errors are logged and dropped.
type Notifier struct {
	bus    *EventBus
	logger *slog.Logger
}

func NewNotifier(bus *EventBus, logger *slog.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logger}
}

// Emit accepts the (event, error) pair straight from a New* constructor.
func (n *Notifier) Emit(ctx context.Context, event *TransactionEvent, buildErr error) {
	if buildErr != nil {
		n.logger.Error("could not build event", "error", buildErr)
		return
	}
	if err := n.bus.PublishSync(ctx, event); err != nil {
		n.logger.Warn("event delivery failed",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", err)
	}
}

// LogHandler writes every event to logger.
func LogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		logger.Info("payment event",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	}
}
