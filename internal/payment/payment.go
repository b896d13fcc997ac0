// Package payment is the host platform's generic payment ledger. Every
// gateway records a settled purchase here once and receives the payment id
// that entitlement delivery and reporting key off.
package payment

import (
	"context"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
)

var ErrPaymentNotFound = internal.NewNotFoundError("payment not found", internal.ErrCodeRecordNotFound)

type RepositoryAPI interface {
	Save(ctx context.Context, p *payment.Payment) (int64, error)
	GetByID(ctx context.Context, id int64) (*payment.Payment, error)
	ListByUser(ctx context.Context, userID int64) ([]*payment.Payment, error)
}
