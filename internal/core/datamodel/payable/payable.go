package payable

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a payment account with its Chargebee gateway settings.
type Account struct {
	ID               int64           `gorm:"primaryKey"`
	Name             string          `gorm:"column:name;size:255;not null"`
	Enabled          bool            `gorm:"column:enabled;not null"`
	SiteName         string          `gorm:"column:site_name;size:255"`
	APIKey           string          `gorm:"column:api_key;size:255"`
	CustomerIDPrefix string          `gorm:"column:customer_id_prefix;size:50"`
	AutoVoidInvoice  bool            `gorm:"column:auto_void_invoice;not null;default:false"`
	Surcharge        decimal.Decimal `gorm:"column:surcharge;type:varchar(20);not null;default:'0'"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (Account) TableName() string {
	return "payment_accounts"
}

// Payable is something a user can buy: an enrolment fee, a certificate, etc.
type Payable struct {
	ID          int64           `gorm:"primaryKey"`
	Component   string          `gorm:"column:component;size:100;not null;index:ux_payables_item,unique,priority:1"`
	PaymentArea string          `gorm:"column:payment_area;size:50;not null;index:ux_payables_item,unique,priority:2"`
	ItemID      int64           `gorm:"column:item_id;not null;index:ux_payables_item,unique,priority:3"`
	AccountID   int64           `gorm:"column:account_id;not null;index"`
	Amount      decimal.Decimal `gorm:"column:amount;type:varchar(20);not null"`
	Currency    string          `gorm:"column:currency;size:3;not null"`
	Description string          `gorm:"column:description;size:255"`
	SuccessURL  string          `gorm:"column:success_url;size:1024"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`

	Account Account `gorm:"foreignKey:AccountID"`
}

func (Payable) TableName() string {
	return "payables"
}
