package models

import "time"

// SensorReading is one accepted measurement. Readings are immutable once
// created and are deleted together with their device.
//
// RawValue and Voltage are diagnostic fields reported by older firmware.
// They are deprecated but kept so existing devices keep working.
type SensorReading struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  uint      `gorm:"index;not null" json:"-"`
	Device    *Device   `json:"-"`
	Value     float64   `gorm:"column:final_value;not null" json:"value"`
	RawValue  *int      `json:"raw_value,omitempty"`
	Voltage   *float64  `json:"voltage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for SensorReading
func (SensorReading) TableName() string {
	return "sensor_readings"
}
