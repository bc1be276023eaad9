package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// DeviceModel is the hardware classification of a guard device. It is
// derived from the device_id prefix exactly once, when the row is created,
// and never recomputed afterwards.
type DeviceModel string

const (
	DeviceModelGasGuard   DeviceModel = "GasGuard"
	DeviceModelTempGuard  DeviceModel = "TempGuard"
	DeviceModelHumidGuard DeviceModel = "HumidGuard"
	DeviceModelUnknown    DeviceModel = "Unknown"
)

// OnlineWindow is how long after its last check-in a device still counts
// as online.
const OnlineWindow = 300 * time.Second

// DefaultSamplingInterval is the factory sampling interval in seconds.
const DefaultSamplingInterval = 15

// ClassifyDeviceID maps a device identifier to its hardware model by
// manufacturer prefix (GG = gas, TG = temperature, HG = humidity).
func ClassifyDeviceID(deviceID string) DeviceModel {
	switch {
	case strings.HasPrefix(deviceID, "GG"):
		return DeviceModelGasGuard
	case strings.HasPrefix(deviceID, "TG"):
		return DeviceModelTempGuard
	case strings.HasPrefix(deviceID, "HG"):
		return DeviceModelHumidGuard
	default:
		return DeviceModelUnknown
	}
}

// DefaultLimits returns the factory threshold bounds for a device model.
func (m DeviceModel) DefaultLimits() (min, max float64) {
	switch m {
	case DeviceModelGasGuard:
		return 0, 100
	case DeviceModelTempGuard:
		return 18, 26
	case DeviceModelHumidGuard:
		return 30, 60
	default:
		return 0, 0
	}
}

// Device represents a guard device. DeviceID is the manufacturer-assigned
// identifier and is globally unique; a device may exist without an owner
// until a user claims it.
type Device struct {
	ID               uint        `gorm:"primaryKey" json:"-"`
	OwnerID          *string     `gorm:"type:uuid;index" json:"-"`
	Owner            *User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	DeviceID         string      `gorm:"uniqueIndex;size:50;not null" json:"device_id"`
	Model            DeviceModel `gorm:"size:20" json:"device_model"`
	Name             string      `gorm:"size:100;default:'My Device'" json:"name"`
	LastSeen         *time.Time  `json:"last_seen,omitempty"`
	SamplingInterval int         `gorm:"default:15" json:"sampling_interval"`
	MinLimit         float64     `json:"min_limit"`
	MaxLimit         float64     `json:"max_limit"`
	TelegramUserID   string      `gorm:"size:100" json:"-"`
	TelegramBotToken string      `gorm:"size:100" json:"-"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`

	Readings []SensorReading `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Commands []DeviceCommand `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Alerts   []AlertEvent    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Device
func (Device) TableName() string {
	return "devices"
}

// BeforeCreate snapshots the classification and its default limits. Updates
// never touch Model, so a later re-interpretation of the identifier cannot
// change it.
func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.Model == "" {
		d.Model = ClassifyDeviceID(d.DeviceID)
		d.MinLimit, d.MaxLimit = d.Model.DefaultLimits()
	}
	if d.SamplingInterval <= 0 {
		d.SamplingInterval = DefaultSamplingInterval
	}
	return nil
}

// IsOnline reports whether the device checked in recently. Liveness is
// derived from LastSeen at read time, never stored.
func (d *Device) IsOnline() bool {
	return d.IsOnlineAt(time.Now())
}

// IsOnlineAt is IsOnline against an explicit clock.
func (d *Device) IsOnlineAt(now time.Time) bool {
	return d.LastSeen != nil && now.Sub(*d.LastSeen) < OnlineWindow
}
