package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/ledger"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	ledgerpkg "github.com/frahmantamala/paygw-chargebee/internal/ledger"
	paymentpostgres "github.com/frahmantamala/paygw-chargebee/internal/payment/postgres"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) ledgerpkg.RepositoryAPI {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Record(ctx context.Context, p *payment.Payment, rec *ledger.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paymentID, err := paymentpostgres.NewPaymentRepository(tx).Save(ctx, p)
		if err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		rec.PaymentID = paymentID
		return insertIfAbsent(tx, rec)
	})
}

func insertIfAbsent(db *gorm.DB, rec *ledger.Transaction) error {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transactionid"}, {Name: "userid"}},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		return fmt.Errorf("insert transaction record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ledgerpkg.ErrAlreadyRecorded
	}
	return nil
}

func (r *LedgerRepository) Lookup(ctx context.Context, transactionID string, userID int64) (*ledger.Transaction, error) {
	var rec ledger.Transaction
	err := r.db.WithContext(ctx).
		Where("transactionid = ? AND userid = ?", transactionID, userID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledgerpkg.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *LedgerRepository) ExistsForTransaction(ctx context.Context, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledger.Transaction{}).
		Where("transactionid = ?", transactionID).
		Count(&count).Error
	return count > 0, err
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64) ([]*ledger.Transaction, error) {
	var recs []*ledger.Transaction
	err := r.db.WithContext(ctx).Where("userid = ?", userID).Order("id").Find(&recs).Error
	return recs, err
}

func (r *LedgerRepository) ErasePII(ctx context.Context, paymentIDs []int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&ledger.Transaction{}).
		Where("paymentid IN ?", paymentIDs).
		Updates(map[string]interface{}{
			"userid":     0,
			"customerid": "",
		})
	return result.RowsAffected, result.Error
}
