package models

import "time"

// CommandType enumerates the operations a device understands.
type CommandType string

const (
	CommandClearEEPROM       CommandType = "clear_eeprom"
	CommandRestart           CommandType = "restart"
	CommandEnableScreen      CommandType = "enable_screen"
	CommandDisableScreen     CommandType = "disable_screen"
	CommandUpdateAPIURL      CommandType = "update_api_url"
	CommandChangeReadingTime CommandType = "change_reading_time"
	CommandDisplayMessage    CommandType = "display_message"
	CommandCalibrateSensor   CommandType = "calibrate_sensor"
	CommandReboot            CommandType = "reboot"
	CommandFactoryReset      CommandType = "factory_reset"
)

var knownCommandTypes = map[CommandType]bool{
	CommandClearEEPROM:       true,
	CommandRestart:           true,
	CommandEnableScreen:      true,
	CommandDisableScreen:     true,
	CommandUpdateAPIURL:      true,
	CommandChangeReadingTime: true,
	CommandDisplayMessage:    true,
	CommandCalibrateSensor:   true,
	CommandReboot:            true,
	CommandFactoryReset:      true,
}

// Valid reports whether t is a recognized command type.
func (t CommandType) Valid() bool {
	return knownCommandTypes[t]
}

// DeviceCommand is one operator-issued command waiting for (or already
// consumed by) a device check-in. Delivery and execution are a single
// transition: the server marks a command executed the moment it hands it to
// the device.
type DeviceCommand struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	DeviceID    uint        `gorm:"index;not null" json:"-"`
	Device      *Device     `json:"-"`
	CommandType CommandType `gorm:"size:50;not null" json:"command_type"`
	Payload     string      `gorm:"type:text" json:"payload"`
	Executed    bool        `gorm:"default:false;index" json:"executed"`
	CreatedAt   time.Time   `json:"created_at"`
	ExecutedAt  *time.Time  `json:"executed_at,omitempty"`
}

// TableName specifies the table name for DeviceCommand
func (DeviceCommand) TableName() string {
	return "device_commands"
}
