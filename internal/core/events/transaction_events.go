package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
)

// Kind is the closed set of payment lifecycle events.
type Kind string

const (
	KindTransactionStarted    Kind = "transaction_started"
	KindTransactionSuccessful Kind = "transaction_successful"
	KindTransactionFailed     Kind = "transaction_failed"
	KindTransactionCancelled  Kind = "transaction_cancelled"
	KindTransactionCompleted  Kind = "transaction_completed"
	KindVoidInvoiceSuccessful Kind = "void_invoice_successful"
	KindVoidInvoiceFailed     Kind = "void_invoice_failed"
)

var allKinds = []Kind{
	KindTransactionStarted,
	KindTransactionSuccessful,
	KindTransactionFailed,
	KindTransactionCancelled,
	KindTransactionCompleted,
	KindVoidInvoiceSuccessful,
	KindVoidInvoiceFailed,
}

func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// TransactionEvent describes one step of a checkout's lifecycle. Build it
// through the New* constructors, which enforce each kind's required fields.
type TransactionEvent struct {
	BaseEvent
	UserID      int64  `json:"user_id"`
	Component   string `json:"component"`
	PaymentArea string `json:"payment_area"`
	ItemID      int64  `json:"item_id"`
	SessionID   string `json:"session_id,omitempty"`
	PaymentID   int64  `json:"payment_id,omitempty"`
	Invoice     string `json:"invoice,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type fields struct {
	sessionID string
	paymentID int64
	invoice   string
	reason    string
}

func newTransactionEvent(kind Kind, pc payment.PurchaseContext, f fields) (*TransactionEvent, error) {
	if pc.Component == "" {
		return nil, missing(kind, "component")
	}
	if pc.PaymentArea == "" {
		return nil, missing(kind, "paymentarea")
	}
	if pc.UserID <= 0 {
		return nil, missing(kind, "userid")
	}

	data := map[string]interface{}{
		"component":   pc.Component,
		"paymentarea": pc.PaymentArea,
		"itemid":      pc.ItemID,
		"userid":      pc.UserID,
	}
	if f.sessionID != "" {
		data["sessionid"] = f.sessionID
	}
	if f.paymentID != 0 {
		data["paymentid"] = f.paymentID
	}
	if f.invoice != "" {
		data["invoice"] = f.invoice
	}
	if f.reason != "" {
		data["reason"] = f.reason
	}

	return &TransactionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      kind,
			Timestamp: time.Now().UTC(),
			Data:      data,
		},
		UserID:      pc.UserID,
		Component:   pc.Component,
		PaymentArea: pc.PaymentArea,
		ItemID:      pc.ItemID,
		SessionID:   f.sessionID,
		PaymentID:   f.paymentID,
		Invoice:     f.invoice,
		Reason:      f.reason,
	}, nil
}

func missing(kind Kind, field string) error {
	return fmt.Errorf("%s event: %s is required", kind, field)
}

func NewTransactionStarted(pc payment.PurchaseContext, sessionID string) (*TransactionEvent, error) {
	if sessionID == "" {
		return nil, missing(KindTransactionStarted, "sessionid")
	}
	return newTransactionEvent(KindTransactionStarted, pc, fields{sessionID: sessionID})
}

func NewTransactionSuccessful(pc payment.PurchaseContext, sessionID string, paymentID int64, invoice string) (*TransactionEvent, error) {
	if paymentID <= 0 {
		return nil, missing(KindTransactionSuccessful, "paymentid")
	}
	if invoice == "" {
		return nil, missing(KindTransactionSuccessful, "invoice")
	}
	return newTransactionEvent(KindTransactionSuccessful, pc, fields{sessionID: sessionID, paymentID: paymentID, invoice: invoice})
}

func NewTransactionFailed(pc payment.PurchaseContext, sessionID, reason string) (*TransactionEvent, error) {
	if reason == "" {
		return nil, missing(KindTransactionFailed, "reason")
	}
	return newTransactionEvent(KindTransactionFailed, pc, fields{sessionID: sessionID, reason: reason})
}

func NewTransactionCancelled(pc payment.PurchaseContext, sessionID string) (*TransactionEvent, error) {
	return newTransactionEvent(KindTransactionCancelled, pc, fields{sessionID: sessionID})
}

func NewTransactionCompleted(pc payment.PurchaseContext, sessionID, invoice string) (*TransactionEvent, error) {
	if invoice == "" {
		return nil, missing(KindTransactionCompleted, "invoice")
	}
	return newTransactionEvent(KindTransactionCompleted, pc, fields{sessionID: sessionID, invoice: invoice})
}

func NewVoidInvoiceSuccessful(pc payment.PurchaseContext, sessionID, invoice string) (*TransactionEvent, error) {
	if invoice == "" {
		return nil, missing(KindVoidInvoiceSuccessful, "invoice")
	}
	return newTransactionEvent(KindVoidInvoiceSuccessful, pc, fields{sessionID: sessionID, invoice: invoice})
}

func NewVoidInvoiceFailed(pc payment.PurchaseContext, sessionID, invoice, reason string) (*TransactionEvent, error) {
	if invoice == "" {
		return nil, missing(KindVoidInvoiceFailed, "invoice")
	}
	return newTransactionEvent(KindVoidInvoiceFailed, pc, fields{sessionID: sessionID, invoice: invoice, reason: reason})
}
