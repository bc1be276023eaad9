package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/ecomonitor-io/ecomonitorgo/internal/database"
	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
)

var testDB *database.DB

func TestMain(m *testing.M) {
	db, cleanup, err := database.ConnectEphemeral(9872)
	if err != nil {
		log.Fatalf("start test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Device{}, &models.SensorReading{}, &models.DeviceCommand{}, &models.AlertEvent{}); err != nil {
		cleanup()
		log.Fatalf("migrate: %v", err)
	}
	testDB = db

	code := m.Run()
	cleanup()
	os.Exit(code)
}

var userSeq int

func newUser(t *testing.T) *models.User {
	t.Helper()
	userSeq++
	u := &models.User{
		ID:       uuid.NewString(),
		Email:    fmt.Sprintf("owner%d@example.com", userSeq),
		Password: "x",
	}
	if err := testDB.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestLookupOrRegisterCreatesUnowned(t *testing.T) {
	r := New(testDB.DB)
	ctx := context.Background()

	device, err := r.LookupOrRegister(ctx, "GG-RTEST-001")
	if err != nil {
		t.Fatalf("LookupOrRegister: %v", err)
	}
	if device.OwnerID != nil {
		t.Error("auto-created device should be unowned")
	}
	if device.Model != models.DeviceModelGasGuard {
		t.Errorf("model = %s, want GasGuard", device.Model)
	}
	if device.MinLimit != 0 || device.MaxLimit != 100 {
		t.Errorf("limits = (%g, %g), want GasGuard defaults", device.MinLimit, device.MaxLimit)
	}

	// Idempotent: a second call returns the same row
	again, err := r.LookupOrRegister(ctx, "GG-RTEST-001")
	if err != nil {
		t.Fatalf("second LookupOrRegister: %v", err)
	}
	if again.ID != device.ID {
		t.Errorf("second lookup created a new row: %d != %d", again.ID, device.ID)
	}
}

func TestRegisterForOwnerConflict(t *testing.T) {
	r := New(testDB.DB)
	ctx := context.Background()
	ownerA := newUser(t)
	ownerB := newUser(t)

	device, err := r.RegisterForOwner(ctx, ownerA, "GG-RTEST-002", "Kitchen Guard")
	if err != nil {
		t.Fatalf("RegisterForOwner: %v", err)
	}
	if device.Name != "Kitchen Guard" {
		t.Errorf("name = %q", device.Name)
	}

	_, err = r.RegisterForOwner(ctx, ownerB, "GG-RTEST-002", "Stolen Guard")
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	// Owner A's registration is untouched
	kept, err := r.FindOwned(ctx, ownerA.ID, "GG-RTEST-002")
	if err != nil {
		t.Fatalf("FindOwned: %v", err)
	}
	if kept.Name != "Kitchen Guard" {
		t.Errorf("conflicting attempt modified the original registration: %q", kept.Name)
	}
}

func TestRegisterForOwnerDefaultName(t *testing.T) {
	r := New(testDB.DB)
	device, err := r.RegisterForOwner(context.Background(), newUser(t), "TG-RTEST-003", "")
	if err != nil {
		t.Fatalf("RegisterForOwner: %v", err)
	}
	if device.Name != "My device ST-003" {
		t.Errorf("default name = %q", device.Name)
	}
}

func TestFindOwnedScopesToOwner(t *testing.T) {
	r := New(testDB.DB)
	ctx := context.Background()
	owner := newUser(t)
	stranger := newUser(t)

	if _, err := r.RegisterForOwner(ctx, owner, "HG-RTEST-004", ""); err != nil {
		t.Fatalf("RegisterForOwner: %v", err)
	}

	if _, err := r.FindOwned(ctx, stranger.ID, "HG-RTEST-004"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign device, got %v", err)
	}
	if _, err := r.FindOwned(ctx, owner.ID, "HG-RTEST-004"); err != nil {
		t.Errorf("owner cannot see own device: %v", err)
	}
}

func TestTouchLiveness(t *testing.T) {
	r := New(testDB.DB)
	ctx := context.Background()

	device, err := r.LookupOrRegister(ctx, "GG-RTEST-005")
	if err != nil {
		t.Fatalf("LookupOrRegister: %v", err)
	}
	if device.IsOnline() {
		t.Error("device online before any check-in")
	}

	if err := r.TouchLiveness(ctx, device); err != nil {
		t.Fatalf("TouchLiveness: %v", err)
	}
	if !device.IsOnline() {
		t.Error("device offline immediately after liveness touch")
	}

	// The timestamp is persisted, not just in-memory
	reloaded, err := r.FindByDeviceID(ctx, "GG-RTEST-005")
	if err != nil {
		t.Fatalf("FindByDeviceID: %v", err)
	}
	if reloaded.LastSeen == nil {
		t.Error("last_seen not persisted")
	}
}

func TestUpdateSettingsFieldsApplyIndependently(t *testing.T) {
	r := New(testDB.DB)
	ctx := context.Background()

	device, err := r.LookupOrRegister(ctx, "TG-RTEST-006")
	if err != nil {
		t.Fatalf("LookupOrRegister: %v", err)
	}

	name := "Server Room"
	badInterval := "soon"
	max := 30.0
	result, err := r.UpdateSettings(ctx, device, SettingsUpdate{
		Name:             &name,
		SamplingInterval: &badInterval,
		MaxLimit:         &max,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if _, rejected := result.Rejected["sampling_interval"]; !rejected {
		t.Error("malformed sampling_interval not rejected")
	}
	if result.IntervalChanged {
		t.Error("IntervalChanged set for a rejected interval")
	}

	reloaded, err := r.FindByDeviceID(ctx, "TG-RTEST-006")
	if err != nil {
		t.Fatalf("FindByDeviceID: %v", err)
	}
	if reloaded.Name != "Server Room" {
		t.Errorf("name not applied: %q", reloaded.Name)
	}
	if reloaded.MaxLimit != 30 {
		t.Errorf("max_limit not applied: %g", reloaded.MaxLimit)
	}
	if reloaded.SamplingInterval != models.DefaultSamplingInterval {
		t.Errorf("sampling interval changed despite rejection: %d", reloaded.SamplingInterval)
	}
	// The classification snapshot never moves
	if reloaded.Model != models.DeviceModelTempGuard {
		t.Errorf("classification changed on settings update: %s", reloaded.Model)
	}
}

func TestUpdateSettingsValidInterval(t *testing.T) {
	r := New(testDB.DB)
	ctx := context.Background()

	device, err := r.LookupOrRegister(ctx, "TG-RTEST-007")
	if err != nil {
		t.Fatalf("LookupOrRegister: %v", err)
	}

	interval := "30"
	result, err := r.UpdateSettings(ctx, device, SettingsUpdate{SamplingInterval: &interval})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if !result.IntervalChanged {
		t.Error("IntervalChanged not set")
	}
	if device.SamplingInterval != 30 {
		t.Errorf("sampling interval = %d, want 30", device.SamplingInterval)
	}
}

func TestUnregisterCascades(t *testing.T) {
	r := New(testDB.DB)
	ctx := context.Background()
	owner := newUser(t)

	device, err := r.RegisterForOwner(ctx, owner, "GG-RTEST-008", "")
	if err != nil {
		t.Fatalf("RegisterForOwner: %v", err)
	}
	reading := models.SensorReading{DeviceID: device.ID, Value: 42}
	if err := testDB.Create(&reading).Error; err != nil {
		t.Fatalf("create reading: %v", err)
	}

	if err := r.Unregister(ctx, owner.ID, "GG-RTEST-008"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	if _, err := r.FindByDeviceID(ctx, "GG-RTEST-008"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("device still present after unregister: %v", err)
	}
	var readingCount int64
	testDB.Model(&models.SensorReading{}).Where("device_id = ?", device.ID).Count(&readingCount)
	if readingCount != 0 {
		t.Errorf("readings survived device deletion: %d", readingCount)
	}
}
