package models

import (
	"time"

	"gorm.io/datatypes"
)

// AlertEvent is the audit record of one threshold breach. It is written
// whether or not the outbound notification succeeds; delivery to the
// messaging channel is best-effort and leaves no trace here.
type AlertEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	DeviceID  uint           `gorm:"index;not null" json:"-"`
	Device    *Device        `json:"-"`
	Kind      string         `gorm:"size:20;not null" json:"kind"`
	Message   string         `gorm:"type:text" json:"message"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName specifies the table name for AlertEvent
func (AlertEvent) TableName() string {
	return "alert_events"
}
