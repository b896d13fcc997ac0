// Package audit persists payment lifecycle events for later inspection.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/audit"
	"github.com/frahmantamala/paygw-chargebee/internal/core/events"
)

type ListFilter struct {
	UserID    int64
	SessionID string
	Kind      events.Kind
	Limit     int
}

type RepositoryAPI interface {
	Save(ctx context.Context, e *audit.Event) error
	List(ctx context.Context, filter ListFilter) ([]*audit.Event, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Handler stores every published event. Subscribe it with SubscribeAll.
func (s *Service) Handler() events.Handler {
	return func(ctx context.Context, event events.Event) error {
		record, err := toModel(event)
		if err != nil {
			return err
		}
		if err := s.repo.Save(ctx, record); err != nil {
			return fmt.Errorf("save audit event: %w", err)
		}
		return nil
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*audit.Event, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", filter.Kind)
	}
	return s.repo.List(ctx, filter)
}

func toModel(event events.Event) (*audit.Event, error) {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	record := &audit.Event{
		ID:         event.EventID(),
		Kind:       string(event.EventType()),
		Data:       datatypes.JSON(data),
		OccurredAt: event.OccurredAt(),
	}

	if tx, ok := event.(*events.TransactionEvent); ok {
		record.UserID = tx.UserID
		record.Component = tx.Component
		record.PaymentArea = tx.PaymentArea
		record.ItemID = tx.ItemID
		record.PaymentID = tx.PaymentID
		record.SessionID = tx.SessionID
		record.Invoice = tx.Invoice
		record.Reason = tx.Reason
	}
	return record, nil
}
