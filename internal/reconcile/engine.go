// Package reconcile decides what a Chargebee checkout session means for the
// host: record a payment, void an abandoned invoice, acknowledge, or nothing.
// Every decision is taken from a freshly fetched session, never from what
// the browser claims.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/paygw-chargebee/internal"
	ledgermodel "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/ledger"
	paymentmodel "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/paygw-chargebee/internal/core/events"
	"github.com/frahmantamala/paygw-chargebee/internal/currency"
	"github.com/frahmantamala/paygw-chargebee/internal/ledger"
	"github.com/frahmantamala/paygw-chargebee/internal/payable"
	"github.com/frahmantamala/paygw-chargebee/internal/paymentgateway"
)

type Outcome string

const (
	OutcomeNoop         Outcome = "no-op"
	OutcomeRecorded     Outcome = "recorded"
	OutcomeVoided       Outcome = "voided"
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomeFailed       Outcome = "failed"
)

var ErrVerificationMismatch = internal.NewValidationError("payment does not match the expected purchase", internal.ErrCodeVerificationMismatch)

type Result struct {
	Outcome       Outcome                   `json:"outcome"`
	SessionID     string                    `json:"session_id"`
	State         gatewaytypes.SessionState `json:"state,omitempty"`
	InvoiceID     string                    `json:"invoice_id,omitempty"`
	TransactionID string                    `json:"transaction_id,omitempty"`
	PaymentID     int64                     `json:"payment_id,omitempty"`
	Reason        string                    `json:"reason,omitempty"`
}

type PurchaseProvider interface {
	GetPurchase(ctx context.Context, component, paymentArea string, itemID int64) (*payable.Purchase, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, pc paymentmodel.PurchaseContext, paymentID int64) error
	Delivered(ctx context.Context, pc paymentmodel.PurchaseContext) (bool, error)
}

type Emitter interface {
	Emit(ctx context.Context, event *events.TransactionEvent, err error)
}

type Dependencies struct {
	Purchases PurchaseProvider
	Gateways  paymentgateway.Factory
	Ledger    ledger.RepositoryAPI
	Deliverer Deliverer
	Notifier  Emitter
	Logger    *slog.Logger
	// VoidComment is attached to invoices voided by auto-void.
	VoidComment string
}

type Engine struct {
	purchases   PurchaseProvider
	gateways    paymentgateway.Factory
	ledger      ledger.RepositoryAPI
	deliverer   Deliverer
	notifier    Emitter
	logger      *slog.Logger
	voidComment string
}

func NewEngine(deps Dependencies) *Engine {
	return &Engine{
		purchases:   deps.Purchases,
		gateways:    deps.Gateways,
		ledger:      deps.Ledger,
		deliverer:   deps.Deliverer,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		voidComment: deps.VoidComment,
	}
}

// run carries the per-call state through the branches.
type run struct {
	sessionID string
	pc        paymentmodel.PurchaseContext
	purchase  *payable.Purchase
	client    paymentgateway.API
	logger    *slog.Logger
	result    *Result
}

// Reconcile brings local state in line with the provider's view of
// sessionID. Provider and storage errors are returned unchanged so the
// caller can retry; a verification mismatch returns OutcomeFailed together
// with an error carrying VERIFICATION_MISMATCH.
func (e *Engine) Reconcile(ctx context.Context, sessionID string, pc paymentmodel.PurchaseContext) (*Result, error) {
	log := e.logger.With(
		"session_id", sessionID,
		"user_id", pc.UserID,
		"component", pc.Component,
		"payment_area", pc.PaymentArea,
		"item_id", pc.ItemID)

	purchase, err := e.purchases.GetPurchase(ctx, pc.Component, pc.PaymentArea, pc.ItemID)
	if err != nil {
		return nil, err
	}

	client, err := e.gateways.ClientFor(purchase.Gateway.Credentials())
	if err != nil {
		return nil, err
	}

	session, err := client.FetchSession(ctx, sessionID)
	if err != nil {
		log.Warn("could not fetch checkout session", "error", err)
		return nil, err
	}

	r := &run{
		sessionID: sessionID,
		pc:        pc,
		purchase:  purchase,
		client:    client,
		logger:    log.With("state", session.State),
		result:    &Result{SessionID: sessionID, State: session.State},
	}
	if session.Invoice != nil {
		r.result.InvoiceID = session.Invoice.ID
		r.result.TransactionID = transactionKey(session.Invoice)
	}

	switch session.State {
	case gatewaytypes.SessionRequested:
		r.logger.Debug("checkout still open")
		return r.finish(OutcomeNoop), nil

	case gatewaytypes.SessionAcknowledged:
		return e.reconcileAcknowledged(ctx, r, session)

	case gatewaytypes.SessionSucceeded:
		return e.reconcileSucceeded(ctx, r, session)

	case gatewaytypes.SessionFailed:
		r.result.Reason = "checkout failed at the provider"
		ev, evErr := events.NewTransactionFailed(pc, sessionID, r.result.Reason)
		e.notifier.Emit(ctx, ev, evErr)
		return r.finish(OutcomeFailed), nil

	case gatewaytypes.SessionCancelled:
		ev, evErr := events.NewTransactionCancelled(pc, sessionID)
		e.notifier.Emit(ctx, ev, evErr)
		return r.finish(OutcomeNoop), nil

	default:
		return nil, fmt.Errorf("unknown checkout session state %q", session.State)
	}
}

func (e *Engine) reconcileAcknowledged(ctx context.Context, r *run, session *gatewaytypes.CheckoutSession) (*Result, error) {
	exists, err := e.ledger.ExistsForTransaction(ctx, r.result.TransactionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		// Acknowledged elsewhere without a local record. Nothing here can
		// safely repair that, so it is left for an operator.
		r.logger.Warn("acknowledged checkout has no local transaction record",
			"invoice_id", r.result.InvoiceID,
			"transaction_id", r.result.TransactionID)
	}
	return r.finish(OutcomeNoop), nil
}

func (e *Engine) reconcileSucceeded(ctx context.Context, r *run, session *gatewaytypes.CheckoutSession) (*Result, error) {
	invoice := session.Invoice
	if invoice == nil {
		return nil, internal.NewExternalError("succeeded checkout session has no invoice", nil)
	}

	exists, err := e.ledger.ExistsForTransaction(ctx, r.result.TransactionID)
	if err != nil {
		return nil, err
	}
	if exists {
		return e.redeliver(ctx, r)
	}

	if invoice.Status == gatewaytypes.InvoicePaid {
		return e.record(ctx, r, invoice)
	}

	return e.settleUnpaid(ctx, r, invoice.ID)
}

func (e *Engine) record(ctx context.Context, r *run, invoice *gatewaytypes.Invoice) (*Result, error) {
	if err := verify(invoice, r.purchase, r.pc); err != nil {
		r.logger.Error("payment verification failed", "invoice_id", invoice.ID, "error", err)
		r.result.Reason = err.Error()
		ev, evErr := events.NewTransactionFailed(r.pc, r.sessionID, r.result.Reason)
		e.notifier.Emit(ctx, ev, evErr)
		return r.finish(OutcomeFailed), err
	}

	p := &paymentmodel.Payment{
		AccountID:   r.purchase.AccountID,
		Component:   r.pc.Component,
		PaymentArea: r.pc.PaymentArea,
		ItemID:      r.pc.ItemID,
		UserID:      r.pc.UserID,
		Amount:      r.purchase.Cost(),
		Currency:    r.purchase.Currency,
		Gateway:     paymentmodel.GatewayChargebee,
	}
	rec := &ledgermodel.Transaction{
		UserID:        r.pc.UserID,
		CustomerID:    invoice.CustomerID,
		TransactionID: r.result.TransactionID,
		InvoiceNumber: invoice.ID,
		AmountPaid:    currency.FromMinorUnits(invoice.AmountPaid, invoice.CurrencyCode),
	}

	err := e.ledger.Record(ctx, p, rec)
	if errors.Is(err, ledger.ErrAlreadyRecorded) {
		r.logger.Info("transaction recorded concurrently", "transaction_id", rec.TransactionID)
		return e.redeliver(ctx, r)
	}
	if err != nil {
		r.logger.Error("failed to record payment", "error", err)
		return nil, err
	}
	r.result.PaymentID = rec.PaymentID

	if err := e.deliverer.Deliver(ctx, r.pc, rec.PaymentID); err != nil {
		r.result.Reason = err.Error()
		ev, evErr := events.NewTransactionFailed(r.pc, r.sessionID, "delivery failed: "+err.Error())
		e.notifier.Emit(ctx, ev, evErr)
		return r.finish(OutcomeRecorded), err
	}

	ev, evErr := events.NewTransactionSuccessful(r.pc, r.sessionID, rec.PaymentID, invoice.ID)
	e.notifier.Emit(ctx, ev, evErr)
	ev, evErr = events.NewTransactionCompleted(r.pc, r.sessionID, invoice.ID)
	e.notifier.Emit(ctx, ev, evErr)

	r.logger.Info("payment recorded", "payment_id", rec.PaymentID, "invoice_id", invoice.ID)
	return r.finish(OutcomeRecorded), nil
}

func (e *Engine) settleUnpaid(ctx context.Context, r *run, invoiceID string) (*Result, error) {
	invoice, err := r.client.FetchInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	switch invoice.Status {
	case gatewaytypes.InvoiceVoided:
		return e.acknowledge(ctx, r)

	case gatewaytypes.InvoicePaymentDue:
		if !r.purchase.Gateway.AutoVoidInvoice {
			r.logger.Info("unpaid invoice left open", "invoice_id", invoice.ID)
			return r.finish(OutcomeNoop), nil
		}
		if expected := r.purchase.Gateway.CustomerID(r.pc.UserID); invoice.CustomerID != expected {
			err := ErrVerificationMismatch.WithCause(
				fmt.Errorf("customer %q does not match %q", invoice.CustomerID, expected))
			r.logger.Error("refusing to void another customer's invoice", "invoice_id", invoice.ID, "error", err)
			r.result.Reason = err.Error()
			ev, evErr := events.NewVoidInvoiceFailed(r.pc, r.sessionID, invoice.ID, r.result.Reason)
			e.notifier.Emit(ctx, ev, evErr)
			return r.finish(OutcomeFailed), err
		}

		void := r.client.VoidInvoice(ctx, invoice.ID, e.voidComment)
		if !void.Voided {
			r.result.Reason = voidFailureReason(void)
			ev, evErr := events.NewVoidInvoiceFailed(r.pc, r.sessionID, invoice.ID, r.result.Reason)
			e.notifier.Emit(ctx, ev, evErr)
			return r.finish(OutcomeFailed), nil
		}

		ev, evErr := events.NewVoidInvoiceSuccessful(r.pc, r.sessionID, invoice.ID)
		e.notifier.Emit(ctx, ev, evErr)
		ev, evErr = events.NewTransactionCompleted(r.pc, r.sessionID, invoice.ID)
		e.notifier.Emit(ctx, ev, evErr)
		return r.finish(OutcomeVoided), nil

	default:
		r.logger.Info("invoice not settled yet", "invoice_id", invoice.ID, "invoice_status", invoice.Status)
		return r.finish(OutcomeNoop), nil
	}
}

// redeliver handles a transaction that is already recorded. If this user's
// record exists but the grant is missing, because delivery failed after the
// record committed, delivery runs again before the session is acknowledged.
func (e *Engine) redeliver(ctx context.Context, r *run) (*Result, error) {
	rec, err := e.ledger.Lookup(ctx, r.result.TransactionID, r.pc.UserID)
	if errors.Is(err, ledger.ErrRecordNotFound) {
		// Recorded for another user; there is nothing to grant here.
		return e.acknowledge(ctx, r)
	}
	if err != nil {
		return nil, err
	}
	r.result.PaymentID = rec.PaymentID

	delivered, err := e.deliverer.Delivered(ctx, r.pc)
	if err != nil {
		return nil, err
	}
	if delivered {
		return e.acknowledge(ctx, r)
	}

	r.logger.Info("retrying delivery", "payment_id", rec.PaymentID)
	if err := e.deliverer.Deliver(ctx, r.pc, rec.PaymentID); err != nil {
		r.logger.Error("redelivery failed", "payment_id", rec.PaymentID, "error", err)
		r.result.Reason = err.Error()
		ev, evErr := events.NewTransactionFailed(r.pc, r.sessionID, "delivery failed: "+err.Error())
		e.notifier.Emit(ctx, ev, evErr)
		return r.finish(OutcomeRecorded), err
	}
	return e.acknowledge(ctx, r)
}

func (e *Engine) acknowledge(ctx context.Context, r *run) (*Result, error) {
	if err := r.client.Acknowledge(ctx, r.sessionID); err != nil {
		return nil, err
	}
	return r.finish(OutcomeAcknowledged), nil
}

func (r *run) finish(outcome Outcome) *Result {
	r.result.Outcome = outcome
	r.logger.Info("reconciliation finished", "outcome", outcome)
	return r.result
}

// verify checks the invoice against what this user owes, exactly.
func verify(invoice *gatewaytypes.Invoice, purchase *payable.Purchase, pc paymentmodel.PurchaseContext) error {
	var problems []string

	if invoice.Status != gatewaytypes.InvoicePaid {
		problems = append(problems, fmt.Sprintf("invoice status %q is not paid", invoice.Status))
	}

	expectedCustomer := purchase.Gateway.CustomerID(pc.UserID)
	if invoice.CustomerID != expectedCustomer {
		problems = append(problems, fmt.Sprintf("customer %q does not match %q", invoice.CustomerID, expectedCustomer))
	}

	if !strings.EqualFold(invoice.CurrencyCode, purchase.Currency) {
		problems = append(problems, fmt.Sprintf("currency %q does not match %q", invoice.CurrencyCode, purchase.Currency))
	}

	expectedAmount, err := currency.ToMinorUnits(purchase.Cost(), purchase.Currency)
	if err != nil {
		problems = append(problems, err.Error())
	} else if invoice.AmountPaid != expectedAmount {
		problems = append(problems, fmt.Sprintf("amount paid %d does not match %d", invoice.AmountPaid, expectedAmount))
	}

	if len(problems) == 0 {
		return nil
	}
	return ErrVerificationMismatch.WithCause(errors.New(strings.Join(problems, "; ")))
}

// transactionKey is the ledger key for an invoice: the settling provider
// transaction, or the invoice id when nothing is linked.
func transactionKey(invoice *gatewaytypes.Invoice) string {
	if txn := invoice.TransactionID(); txn != "" {
		return txn
	}
	return invoice.ID
}

func voidFailureReason(v gatewaytypes.VoidResult) string {
	if v.Err != nil {
		return v.Err.Error()
	}
	return fmt.Sprintf("invoice status after void is %q", v.Status)
}
