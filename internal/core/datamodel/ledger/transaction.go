package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction links a Chargebee transaction to the host payment it produced.
// At most one row exists per (transactionid, userid).
type Transaction struct {
	ID            int64           `gorm:"primaryKey"`
	UserID        int64           `gorm:"column:userid;not null;index:ux_paygw_chargebee_txn_user,unique,priority:2"`
	PaymentID     int64           `gorm:"column:paymentid;not null;index"`
	CustomerID    string          `gorm:"column:customerid;size:255"`
	TransactionID string          `gorm:"column:transactionid;size:255;not null;index:ux_paygw_chargebee_txn_user,unique,priority:1"`
	InvoiceNumber string          `gorm:"column:invoicenumber;size:255"`
	AmountPaid    decimal.Decimal `gorm:"column:amountpaid;type:varchar(20)"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (Transaction) TableName() string {
	return "paygw_chargebee"
}
