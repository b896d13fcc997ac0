package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const GatewayChargebee = "chargebee"

// Payment is the host platform's generic payment ledger entry.
type Payment struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	AccountID   int64           `gorm:"column:account_id;not null;index" json:"account_id"`
	Component   string          `gorm:"column:component;size:100;not null" json:"component"`
	PaymentArea string          `gorm:"column:payment_area;size:50;not null" json:"payment_area"`
	ItemID      int64           `gorm:"column:item_id;not null" json:"item_id"`
	UserID      int64           `gorm:"column:user_id;not null;index" json:"user_id"`
	Amount      decimal.Decimal `gorm:"column:amount;type:varchar(20);not null" json:"amount"`
	Currency    string          `gorm:"column:currency;size:3;not null" json:"currency"`
	Gateway     string          `gorm:"column:gateway;size:100;not null" json:"gateway"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// PurchaseContext identifies what a user is paying for.
type PurchaseContext struct {
	Component   string `json:"component"`
	PaymentArea string `json:"paymentarea"`
	ItemID      int64  `json:"itemid"`
	UserID      int64  `json:"userid"`
}
