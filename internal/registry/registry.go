// Package registry owns device identity and liveness. All device mutation
// goes through here or through the command queue; handlers never touch the
// devices table directly.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
)

var (
	// ErrNotRegistered means the device id is unknown to the registry.
	ErrNotRegistered = errors.New("device not registered")
	// ErrAlreadyRegistered means the device id exists under some owner
	// (not necessarily the caller's).
	ErrAlreadyRegistered = errors.New("device already registered")
	// ErrNotFound means the device exists but is not visible to the
	// caller (wrong owner).
	ErrNotFound = errors.New("device not found")
)

// Registry provides device lookup, claiming, liveness and settings.
type Registry struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// FindByDeviceID returns the device or ErrNotRegistered.
func (r *Registry) FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// FindOwned returns the device only if it belongs to ownerID, otherwise
// ErrNotFound. Used by every operator-facing endpoint.
func (r *Registry) FindOwned(ctx context.Context, ownerID, deviceID string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND owner_id = ?", deviceID, ownerID).
		First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// ListOwned returns all devices claimed by the owner, newest first.
func (r *Registry) ListOwned(ctx context.Context, ownerID string) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&devices).Error
	return devices, err
}

// LookupOrRegister returns the device, creating an unowned one if the id is
// new. The insert uses ON CONFLICT DO NOTHING so concurrent calls with the
// same id all converge on the single created row.
func (r *Registry) LookupOrRegister(ctx context.Context, deviceID string) (*models.Device, error) {
	device := models.Device{
		DeviceID: deviceID,
		Name:     "Device " + deviceID,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoNothing: true,
		}).
		Create(&device).Error
	if err != nil {
		return nil, fmt.Errorf("register device %s: %w", deviceID, err)
	}
	// Re-read: on conflict the insert reports nothing, and even on success
	// the row re-read keeps both paths identical.
	return r.FindByDeviceID(ctx, deviceID)
}

// RegisterForOwner claims a device id for an account. Unlike the ingestion
// path, a duplicate id is rejected outright, whoever currently holds it.
func (r *Registry) RegisterForOwner(ctx context.Context, owner *models.User, deviceID, name string) (*models.Device, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Device{}).
		Where("device_id = ?", deviceID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAlreadyRegistered
	}

	if name == "" {
		suffix := deviceID
		if len(suffix) > 6 {
			suffix = suffix[len(suffix)-6:]
		}
		name = "My device " + suffix
	}

	device := models.Device{
		OwnerID:  &owner.ID,
		DeviceID: deviceID,
		Name:     name,
	}
	err := r.db.WithContext(ctx).Create(&device).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with a concurrent registration.
		return nil, ErrAlreadyRegistered
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Unregister deletes the owner's device. Readings, commands and alert
// events cascade with it.
func (r *Registry) Unregister(ctx context.Context, ownerID, deviceID string) error {
	device, err := r.FindOwned(ctx, ownerID, deviceID)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(device).Error
}

// TouchLiveness stamps last_seen with the current time. Called exactly once
// per successful check-in, before the command drain.
func (r *Registry) TouchLiveness(ctx context.Context, device *models.Device) error {
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(device).
		UpdateColumn("last_seen", now).Error; err != nil {
		return err
	}
	device.LastSeen = &now
	return nil
}

// SettingsUpdate is a partial settings change. Nil (or empty-string) fields
// are left alone. SamplingInterval arrives as text and must parse as a
// positive integer.
type SettingsUpdate struct {
	Name             *string
	SamplingInterval *string
	MinLimit         *float64
	MaxLimit         *float64
	TelegramUserID   *string
	TelegramBotToken *string
}

// SettingsResult reports which fields were applied and which were rejected,
// with a reason per rejection. Fields validate and apply independently: one
// bad field never blocks the others.
type SettingsResult struct {
	Applied  []string
	Rejected map[string]string
	// IntervalChanged is set when SamplingInterval was applied, so the
	// caller can queue a change_reading_time command for the device.
	IntervalChanged bool
}

// UpdateSettings applies a partial update to the device.
func (r *Registry) UpdateSettings(ctx context.Context, device *models.Device, upd SettingsUpdate) (*SettingsResult, error) {
	res := &SettingsResult{Rejected: map[string]string{}}
	changes := map[string]interface{}{}

	if upd.Name != nil && *upd.Name != "" {
		device.Name = *upd.Name
		changes["name"] = device.Name
		res.Applied = append(res.Applied, "name")
	}
	if upd.SamplingInterval != nil && *upd.SamplingInterval != "" {
		n, err := strconv.Atoi(*upd.SamplingInterval)
		if err != nil || n < 1 {
			res.Rejected["sampling_interval"] = "must be a positive integer"
		} else {
			device.SamplingInterval = n
			changes["sampling_interval"] = n
			res.Applied = append(res.Applied, "sampling_interval")
			res.IntervalChanged = true
		}
	}
	if upd.MinLimit != nil {
		device.MinLimit = *upd.MinLimit
		changes["min_limit"] = device.MinLimit
		res.Applied = append(res.Applied, "min_limit")
	}
	if upd.MaxLimit != nil {
		device.MaxLimit = *upd.MaxLimit
		changes["max_limit"] = device.MaxLimit
		res.Applied = append(res.Applied, "max_limit")
	}
	if upd.TelegramUserID != nil && *upd.TelegramUserID != "" {
		device.TelegramUserID = *upd.TelegramUserID
		changes["telegram_user_id"] = device.TelegramUserID
		res.Applied = append(res.Applied, "telegram_user_id")
	}
	if upd.TelegramBotToken != nil && *upd.TelegramBotToken != "" {
		device.TelegramBotToken = *upd.TelegramBotToken
		changes["telegram_bot_token"] = device.TelegramBotToken
		res.Applied = append(res.Applied, "telegram_bot_token")
	}

	if len(changes) == 0 {
		return res, nil
	}
	if err := r.db.WithContext(ctx).Model(device).Updates(changes).Error; err != nil {
		return nil, err
	}
	return res, nil
}
