// Package entitlement grants users access to what they paid for.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/entitlement"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
)

type RepositoryAPI interface {
	// Grant is idempotent on (component, paymentarea, itemid, userid).
	Grant(ctx context.Context, e *entitlement.Entitlement) error
	Has(ctx context.Context, pc payment.PurchaseContext) (bool, error)
}

type Deliverer struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewDeliverer(repo RepositoryAPI, logger *slog.Logger) *Deliverer {
	return &Deliverer{repo: repo, logger: logger}
}

// Delivered reports whether the purchase has already been granted.
func (d *Deliverer) Delivered(ctx context.Context, pc payment.PurchaseContext) (bool, error) {
	has, err := d.repo.Has(ctx, pc)
	if err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	return has, nil
}

func (d *Deliverer) Deliver(ctx context.Context, pc payment.PurchaseContext, paymentID int64) error {
	err := d.repo.Grant(ctx, &entitlement.Entitlement{
		UserID:      pc.UserID,
		Component:   pc.Component,
		PaymentArea: pc.PaymentArea,
		ItemID:      pc.ItemID,
		PaymentID:   paymentID,
	})
	if err != nil {
		d.logger.Error("failed to deliver order",
			"component", pc.Component,
			"payment_area", pc.PaymentArea,
			"item_id", pc.ItemID,
			"user_id", pc.UserID,
			"payment_id", paymentID,
			"error", err)
		return fmt.Errorf("deliver order: %w", err)
	}

	d.logger.Info("order delivered",
		"component", pc.Component,
		"item_id", pc.ItemID,
		"user_id", pc.UserID,
		"payment_id", paymentID)
	return nil
}
