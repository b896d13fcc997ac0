package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payable"
	payablepkg "github.com/frahmantamala/paygw-chargebee/internal/payable"
)

type PayableRepository struct {
	db *gorm.DB
}

func NewPayableRepository(db *gorm.DB) payablepkg.RepositoryAPI {
	return &PayableRepository{db: db}
}

func (r *PayableRepository) GetByItem(ctx context.Context, component, paymentArea string, itemID int64) (*payable.Payable, error) {
	var p payable.Payable
	err := r.db.WithContext(ctx).
		Preload("Account").
		Where("component = ? AND payment_area = ? AND item_id = ?", component, paymentArea, itemID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payablepkg.ErrPayableNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PayableRepository) SaveAccount(ctx context.Context, a *payable.Account) error {
	return r.db.WithContext(ctx).Save(a).Error
}

// SavePayable upserts on (component, payment_area, item_id).
func (r *PayableRepository) SavePayable(ctx context.Context, p *payable.Payable) error {
	return r.db.WithContext(ctx).Omit("Account").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "component"}, {Name: "payment_area"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id", "amount", "currency", "description", "success_url", "updated_at"}),
	}).Create(p).Error
}
