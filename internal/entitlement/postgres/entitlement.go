package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/entitlement"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	entitlementpkg "github.com/frahmantamala/paygw-chargebee/internal/entitlement"
)

type EntitlementRepository struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) entitlementpkg.RepositoryAPI {
	return &EntitlementRepository{db: db}
}

func (r *EntitlementRepository) Grant(ctx context.Context, e *entitlement.Entitlement) error {
	if e.GrantedAt.IsZero() {
		e.GrantedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "component"}, {Name: "payment_area"}, {Name: "item_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(e).Error
}

func (r *EntitlementRepository) Has(ctx context.Context, pc payment.PurchaseContext) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entitlement.Entitlement{}).
		Where("component = ? AND payment_area = ? AND item_id = ? AND user_id = ?",
			pc.Component, pc.PaymentArea, pc.ItemID, pc.UserID).
		Count(&count).Error
	return count > 0, err
}
