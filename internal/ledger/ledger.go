// Package ledger records which Chargebee transactions have already been
// turned into host payments. Its unique (transactionid, userid) index is what
// makes concurrent reconciliation of the same session safe.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/ledger"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
)

var (
	ErrAlreadyRecorded = internal.NewConflictError("Error. This transaction was already recorded.", internal.ErrCodeAlreadyRecorded)
	ErrRecordNotFound  = internal.NewNotFoundError("transaction record not found", internal.ErrCodeRecordNotFound)
)

type RepositoryAPI interface {
	// Record saves the host payment and the ledger row in one transaction.
	// On ErrAlreadyRecorded neither row is kept.
	Record(ctx context.Context, p *payment.Payment, rec *ledger.Transaction) error
	// Lookup returns ErrRecordNotFound when the user has no record for the
	// transaction.
	Lookup(ctx context.Context, transactionID string, userID int64) (*ledger.Transaction, error)
	ExistsForTransaction(ctx context.Context, transactionID string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*ledger.Transaction, error)
	ErasePII(ctx context.Context, paymentIDs []int64) (int64, error)
}

// ExportRow is one line of a user's privacy export.
type ExportRow struct {
	PaymentID     int64  `db:"paymentid" json:"payment_id"`
	CustomerID    string `db:"customerid" json:"customer_id"`
	TransactionID string `db:"transactionid" json:"transaction_id"`
	InvoiceNumber string `db:"invoicenumber" json:"invoice_number"`
	AmountPaid    string `db:"amountpaid" json:"amount_paid"`
}

type Exporter interface {
	ExportByUser(ctx context.Context, userID int64) ([]ExportRow, error)
}

// Service exposes the privacy operations over the ledger.
type Service struct {
	repo     RepositoryAPI
	exporter Exporter
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, exporter Exporter, logger *slog.Logger) *Service {
	return &Service{repo: repo, exporter: exporter, logger: logger}
}

// Erase blanks the user id and customer id on the records of the given
// payments. Transaction ids, invoice numbers and amounts are retained.
func (s *Service) Erase(ctx context.Context, paymentIDs []int64) (int64, error) {
	if len(paymentIDs) == 0 {
		return 0, nil
	}
	n, err := s.repo.ErasePII(ctx, paymentIDs)
	if err != nil {
		s.logger.Error("failed to erase ledger personal data", "payment_ids", paymentIDs, "error", err)
		return 0, fmt.Errorf("erase personal data: %w", err)
	}
	s.logger.Info("erased ledger personal data", "payment_ids", paymentIDs, "rows", n)
	return n, nil
}

func (s *Service) Export(ctx context.Context, userID int64) ([]ExportRow, error) {
	rows, err := s.exporter.ExportByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to export ledger data", "user_id", userID, "error", err)
		return nil, fmt.Errorf("export personal data: %w", err)
	}
	return rows, nil
}
