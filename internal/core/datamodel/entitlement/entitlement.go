package entitlement

import "time"

type Entitlement struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      int64     `gorm:"column:user_id;not null;index:ux_entitlements_grant,unique,priority:4"`
	Component   string    `gorm:"column:component;size:100;not null;index:ux_entitlements_grant,unique,priority:1"`
	PaymentArea string    `gorm:"column:payment_area;size:50;not null;index:ux_entitlements_grant,unique,priority:2"`
	ItemID      int64     `gorm:"column:item_id;not null;index:ux_entitlements_grant,unique,priority:3"`
	PaymentID   int64     `gorm:"column:payment_id;not null"`
	GrantedAt   time.Time `gorm:"column:granted_at"`
}

func (Entitlement) TableName() string {
	return "entitlements"
}
