// Package ingest orchestrates one device check-in: validate, registration
// gate, liveness touch, command drain, reading accept, alert evaluation.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ecomonitor-io/ecomonitorgo/internal/alerts"
	"github.com/ecomonitor-io/ecomonitorgo/internal/commands"
	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
	"github.com/ecomonitor-io/ecomonitorgo/internal/notify"
	"github.com/ecomonitor-io/ecomonitorgo/internal/registry"
)

var (
	// ErrDeviceIDRequired rejects a check-in with no device id at all.
	ErrDeviceIDRequired = errors.New("device_id is required")
	// ErrValueRequired rejects a reading with no measurement value.
	ErrValueRequired = errors.New("value is required")
)

// CheckIn is the request body one device sends per cycle. Older firmware
// posts the measurement as final_value; both spellings are accepted.
type CheckIn struct {
	DeviceID    string   `json:"device_id"`
	Value       *float64 `json:"value"`
	LegacyValue *float64 `json:"final_value"`
	RawValue    *int     `json:"raw_value"`
	Voltage     *float64 `json:"voltage"`
}

func (c *CheckIn) value() *float64 {
	if c.Value != nil {
		return c.Value
	}
	return c.LegacyValue
}

// Result is the outcome of one check-in: exactly one of Command or Reading
// is set. A delivered command always wins over a reading; no reading is
// recorded on a command-delivery cycle.
type Result struct {
	Command *models.DeviceCommand
	Reading *models.SensorReading
}

// NotifyTimeout bounds one outbound alert delivery. It deliberately does
// not inherit the check-in deadline: the response returns immediately while
// delivery finishes in the background.
const NotifyTimeout = 10 * time.Second

// Service runs the check-in protocol.
type Service struct {
	db       *gorm.DB
	registry *registry.Registry
	queue    *commands.Queue
	sink     notify.Sink

	// autoRegister switches step 2 from reject-unknown to
	// create-on-first-contact.
	autoRegister bool
}

func NewService(db *gorm.DB, reg *registry.Registry, queue *commands.Queue, sink notify.Sink, autoRegister bool) *Service {
	return &Service{
		db:           db,
		registry:     reg,
		queue:        queue,
		sink:         sink,
		autoRegister: autoRegister,
	}
}

// ProcessCheckIn runs one check-in to completion.
//
// Errors map to the caller-facing taxonomy: ErrDeviceIDRequired (bad
// request), registry.ErrNotRegistered (unknown device), ErrValueRequired
// (reading validation). Anything else is an internal failure.
func (s *Service) ProcessCheckIn(ctx context.Context, req CheckIn) (*Result, error) {
	if req.DeviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	// Registration gate. Telemetry from unknown devices is rejected unless
	// the deployment opts in to auto-registration.
	var device *models.Device
	var err error
	if s.autoRegister {
		device, err = s.registry.LookupOrRegister(ctx, req.DeviceID)
	} else {
		device, err = s.registry.FindByDeviceID(ctx, req.DeviceID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.registry.TouchLiveness(ctx, device); err != nil {
		return nil, err
	}

	// One pending command preempts the reading for this cycle.
	cmd, err := s.queue.DrainNextPending(ctx, device)
	if err != nil {
		return nil, err
	}
	if cmd != nil {
		return &Result{Command: cmd}, nil
	}

	value := req.value()
	if value == nil {
		return nil, ErrValueRequired
	}

	reading := models.SensorReading{
		DeviceID: device.ID,
		Value:    *value,
		RawValue: req.RawValue,
		Voltage:  req.Voltage,
	}
	if err := s.db.WithContext(ctx).Create(&reading).Error; err != nil {
		return nil, err
	}

	if alert := alerts.Evaluate(device, reading.Value); alert != nil {
		s.emitAlert(device, alert)
	}

	return &Result{Reading: &reading}, nil
}

// emitAlert records the breach and hands the message to the notification
// sink. Neither step may fail the check-in: the audit write logs on error,
// and delivery runs in the background on its own deadline.
func (s *Service) emitAlert(device *models.Device, alert *alerts.Alert) {
	details, _ := json.Marshal(map[string]interface{}{
		"device_id": alert.DeviceID,
		"value":     alert.Value,
		"limit":     alert.Limit,
	})
	event := models.AlertEvent{
		DeviceID: device.ID,
		Kind:     string(alert.Kind),
		Message:  alert.Message,
		Details:  datatypes.JSON(details),
	}
	if err := s.db.Create(&event).Error; err != nil {
		log.Printf("⚠️  Alert audit write failed for %s: %v", device.DeviceID, err)
	}

	if s.sink == nil || device.TelegramBotToken == "" || device.TelegramUserID == "" {
		return
	}
	token, chatID, message := device.TelegramBotToken, device.TelegramUserID, alert.Message
	deviceID := device.DeviceID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), NotifyTimeout)
		defer cancel()
		if err := s.sink.Send(ctx, token, chatID, message); err != nil {
			log.Printf("⚠️  Telegram notify failed for %s: %v", deviceID, err)
		}
	}()
}
