package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/paygw-chargebee/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository accepts either the root handle or an open transaction.
func NewPaymentRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) (int64, error) {
	if p.Gateway == "" {
		p.Gateway = payment.GatewayChargebee
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, paymentpkg.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}
