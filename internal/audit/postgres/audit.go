package postgres

import (
	"context"

	"gorm.io/gorm"

	auditpkg "github.com/frahmantamala/paygw-chargebee/internal/audit"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/audit"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) auditpkg.RepositoryAPI {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Save(ctx context.Context, e *audit.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *AuditRepository) List(ctx context.Context, filter auditpkg.ListFilter) ([]*audit.Event, error) {
	query := r.db.WithContext(ctx).Model(&audit.Event{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}

	var out []*audit.Event
	err := query.Order("occurred_at DESC").Limit(filter.Limit).Find(&out).Error
	return out, err
}
