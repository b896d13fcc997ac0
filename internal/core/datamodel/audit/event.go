package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Event is a persisted payment lifecycle event.
type Event struct {
	ID          string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	Kind        string         `gorm:"column:kind;size:50;not null;index" json:"kind"`
	UserID      int64          `gorm:"column:user_id;index" json:"user_id"`
	Component   string         `gorm:"column:component;size:100" json:"component"`
	PaymentArea string         `gorm:"column:payment_area;size:50" json:"payment_area"`
	ItemID      int64          `gorm:"column:item_id" json:"item_id"`
	PaymentID   int64          `gorm:"column:payment_id" json:"payment_id,omitempty"`
	SessionID   string         `gorm:"column:session_id;size:255;index" json:"session_id,omitempty"`
	Invoice     string         `gorm:"column:invoice;size:255" json:"invoice,omitempty"`
	Reason      string         `gorm:"column:reason;type:text" json:"reason,omitempty"`
	Data        datatypes.JSON `gorm:"column:data" json:"data,omitempty"`
	OccurredAt  time.Time      `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
}

func (Event) TableName() string {
	return "paygw_chargebee_events"
}
