package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ecomonitor-io/ecomonitorgo/internal/commands"
	"github.com/ecomonitor-io/ecomonitorgo/internal/database"
	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
	"github.com/ecomonitor-io/ecomonitorgo/internal/notify"
	"github.com/ecomonitor-io/ecomonitorgo/internal/registry"
)

var (
	testDB    *database.DB
	testReg   *registry.Registry
	testQueue *commands.Queue
)

func TestMain(m *testing.M) {
	db, cleanup, err := database.ConnectEphemeral(9873)
	if err != nil {
		log.Fatalf("start test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Device{}, &models.SensorReading{}, &models.DeviceCommand{}, &models.AlertEvent{}); err != nil {
		cleanup()
		log.Fatalf("migrate: %v", err)
	}
	testDB = db
	testReg = registry.New(db.DB)
	testQueue = commands.New(db.DB)

	code := m.Run()
	cleanup()
	os.Exit(code)
}

// recordingSink captures outbound notifications for assertions.
type recordingSink struct {
	sends chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{sends: make(chan string, 8)}
}

func (s *recordingSink) Send(ctx context.Context, botToken, chatID, message string) error {
	s.sends <- fmt.Sprintf("%s|%s|%s", botToken, chatID, message)
	return nil
}

func newService(sink notify.Sink, autoRegister bool) *Service {
	return NewService(testDB.DB, testReg, testQueue, sink, autoRegister)
}

var deviceSeq int

func registeredDevice(t *testing.T, prefix string) *models.Device {
	t.Helper()
	deviceSeq++
	device, err := testReg.LookupOrRegister(context.Background(), fmt.Sprintf("%s-ITEST-%03d", prefix, deviceSeq))
	if err != nil {
		t.Fatalf("register device: %v", err)
	}
	return device
}

func f64(v float64) *float64 { return &v }

func TestCheckInRequiresDeviceID(t *testing.T) {
	svc := newService(nil, false)
	_, err := svc.ProcessCheckIn(context.Background(), CheckIn{Value: f64(1)})
	if !errors.Is(err, ErrDeviceIDRequired) {
		t.Fatalf("expected ErrDeviceIDRequired, got %v", err)
	}
}

func TestCheckInRejectsUnknownDevice(t *testing.T) {
	svc := newService(nil, false)
	_, err := svc.ProcessCheckIn(context.Background(), CheckIn{DeviceID: "GG-NEVER-SEEN", Value: f64(1)})
	if !errors.Is(err, registry.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	// The gate is authoritative: rejection has no side effects
	if _, err := testReg.FindByDeviceID(context.Background(), "GG-NEVER-SEEN"); !errors.Is(err, registry.ErrNotRegistered) {
		t.Error("gate rejection auto-created the device")
	}
}

func TestCheckInAutoRegisterMode(t *testing.T) {
	svc := newService(nil, true)
	result, err := svc.ProcessCheckIn(context.Background(), CheckIn{DeviceID: "GG-FIRST-CONTACT", Value: f64(5)})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if result.Reading == nil {
		t.Fatal("expected accepted reading")
	}
	device, err := testReg.FindByDeviceID(context.Background(), "GG-FIRST-CONTACT")
	if err != nil {
		t.Fatalf("device not created: %v", err)
	}
	if device.OwnerID != nil {
		t.Error("auto-registered device should be unowned")
	}
}

func TestCheckInTouchesLiveness(t *testing.T) {
	svc := newService(nil, false)
	device := registeredDevice(t, "TG")

	if _, err := svc.ProcessCheckIn(context.Background(), CheckIn{DeviceID: device.DeviceID, Value: f64(20)}); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	reloaded, err := testReg.FindByDeviceID(context.Background(), device.DeviceID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsOnline() {
		t.Error("device offline after a successful check-in")
	}
}

func TestCommandDeliveryPreemptsReading(t *testing.T) {
	svc := newService(nil, false)
	device := registeredDevice(t, "TG")
	ctx := context.Background()

	if _, err := testQueue.Enqueue(ctx, device, models.CommandRestart, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := svc.ProcessCheckIn(ctx, CheckIn{DeviceID: device.DeviceID, Value: f64(20)})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if result.Command == nil {
		t.Fatal("expected command delivery")
	}
	if result.Reading != nil {
		t.Fatal("reading recorded on a command-delivery check-in")
	}
	if result.Command.CommandType != models.CommandRestart {
		t.Errorf("command = %s, want restart", result.Command.CommandType)
	}

	// No reading was persisted for the command cycle
	var readingCount int64
	testDB.Model(&models.SensorReading{}).Where("device_id = ?", device.ID).Count(&readingCount)
	if readingCount != 0 {
		t.Errorf("reading persisted alongside command delivery: %d", readingCount)
	}

	// The next check-in finds an empty queue and accepts the reading
	result, err = svc.ProcessCheckIn(ctx, CheckIn{DeviceID: device.DeviceID, Value: f64(21)})
	if err != nil {
		t.Fatalf("second check-in: %v", err)
	}
	if result.Reading == nil {
		t.Fatal("expected accepted reading after queue drained")
	}
	if result.Reading.Value != 21 {
		t.Errorf("value = %g, want 21", result.Reading.Value)
	}
}

func TestCheckInRequiresValueWhenNoCommand(t *testing.T) {
	svc := newService(nil, false)
	device := registeredDevice(t, "GG")

	_, err := svc.ProcessCheckIn(context.Background(), CheckIn{DeviceID: device.DeviceID})
	if !errors.Is(err, ErrValueRequired) {
		t.Fatalf("expected ErrValueRequired, got %v", err)
	}
}

func TestCheckInAcceptsLegacyFinalValue(t *testing.T) {
	svc := newService(nil, false)
	device := registeredDevice(t, "GG")

	result, err := svc.ProcessCheckIn(context.Background(), CheckIn{
		DeviceID:    device.DeviceID,
		LegacyValue: f64(42),
	})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if result.Reading == nil || result.Reading.Value != 42 {
		t.Fatalf("legacy final_value not accepted: %+v", result)
	}
}

func TestBreachEmitsAlertAndNotifies(t *testing.T) {
	sink := newRecordingSink()
	svc := newService(sink, false)
	device := registeredDevice(t, "GG")
	ctx := context.Background()

	// Configure the notification channel for the device
	token := "bot-token"
	chat := "chat-42"
	if _, err := testReg.UpdateSettings(ctx, device, registry.SettingsUpdate{
		TelegramUserID:   &chat,
		TelegramBotToken: &token,
	}); err != nil {
		t.Fatalf("settings: %v", err)
	}

	result, err := svc.ProcessCheckIn(ctx, CheckIn{DeviceID: device.DeviceID, Value: f64(150)})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if result.Reading == nil {
		t.Fatal("breaching reading should still be accepted")
	}

	// Audit row is written synchronously
	var eventCount int64
	testDB.Model(&models.AlertEvent{}).Where("device_id = ?", device.ID).Count(&eventCount)
	if eventCount != 1 {
		t.Fatalf("alert events = %d, want 1", eventCount)
	}

	// Delivery happens in the background
	select {
	case sent := <-sink.sends:
		if want := "bot-token|chat-42|"; len(sent) < len(want) || sent[:len(want)] != want {
			t.Errorf("sink called with wrong credentials: %q", sent)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification sink never called")
	}
}

func TestInBandReadingNeverAlerts(t *testing.T) {
	sink := newRecordingSink()
	svc := newService(sink, false)
	device := registeredDevice(t, "GG")

	if _, err := svc.ProcessCheckIn(context.Background(), CheckIn{DeviceID: device.DeviceID, Value: f64(100)}); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	var eventCount int64
	testDB.Model(&models.AlertEvent{}).Where("device_id = ?", device.ID).Count(&eventCount)
	if eventCount != 0 {
		t.Errorf("in-band reading produced %d alert events", eventCount)
	}
}
