package paymentgateway

import (
	"errors"
	"strings"
)

// SessionState is the lifecycle state of a Chargebee hosted checkout page.
type SessionState string

const (
	SessionRequested    SessionState = "requested"
	SessionSucceeded    SessionState = "succeeded"
	SessionAcknowledged SessionState = "acknowledged"
	SessionFailed       SessionState = "failed"
	SessionCancelled    SessionState = "cancelled"
)

type InvoiceStatus string

const (
	InvoicePaid       InvoiceStatus = "paid"
	InvoicePaymentDue InvoiceStatus = "payment_due"
	InvoiceVoided     InvoiceStatus = "voided"
	InvoicePosted     InvoiceStatus = "posted"
	InvoiceNotPaid    InvoiceStatus = "not_paid"
	InvoicePending    InvoiceStatus = "pending"
)

type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type LinkedPayment struct {
	TxnID         string `json:"txn_id"`
	AppliedAmount int64  `json:"applied_amount"`
	TxnStatus     string `json:"txn_status"`
}

// Invoice is a read-only snapshot of a Chargebee invoice. AmountPaid is in
// provider minor units.
type Invoice struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	Status         InvoiceStatus   `json:"status"`
	AmountPaid     int64           `json:"amount_paid"`
	Total          int64           `json:"total"`
	CurrencyCode   string          `json:"currency_code"`
	LinkedPayments []LinkedPayment `json:"linked_payments"`
}

// TransactionID is the provider transaction that settled the invoice, or
// empty when nothing has been applied yet.
func (i *Invoice) TransactionID() string {
	if i == nil || len(i.LinkedPayments) == 0 {
		return ""
	}
	return i.LinkedPayments[0].TxnID
}

// CheckoutSession is a read-only snapshot of a hosted checkout page.
type CheckoutSession struct {
	ID       string       `json:"id"`
	URL      string       `json:"url"`
	State    SessionState `json:"state"`
	Invoice  *Invoice     `json:"invoice,omitempty"`
	Customer *Customer    `json:"customer,omitempty"`
}

type CheckoutRequest struct {
	Customer    Customer
	AmountMinor int64
	Currency    string
	Description string
	RedirectURL string
	CancelURL   string
}

func (r *CheckoutRequest) Validate() error {
	var errs []string
	if r.Customer.ID == "" {
		errs = append(errs, "customer id is required")
	}
	if r.AmountMinor <= 0 {
		errs = append(errs, "amount must be greater than zero")
	}
	if r.Currency == "" {
		errs = append(errs, "currency is required")
	}
	if r.RedirectURL == "" {
		errs = append(errs, "redirect url is required")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// VoidResult reports the outcome of a void attempt. A failed void is data,
// not an error: callers branch on Voided.
type VoidResult struct {
	InvoiceID string
	Status    InvoiceStatus
	Voided    bool
	Err       error
}
