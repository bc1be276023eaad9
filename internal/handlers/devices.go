package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"github.com/ecomonitor-io/ecomonitorgo/internal/middleware"
	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
	"github.com/ecomonitor-io/ecomonitorgo/internal/registry"
)

// ClaimDeviceRequest registers a device id to the caller's account
type ClaimDeviceRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// SettingsRequest is a partial settings update; absent fields stay as they
// are. sampling_interval is text and must parse as a positive integer.
type SettingsRequest struct {
	Name             *string  `json:"name"`
	SamplingInterval *string  `json:"sampling_interval"`
	MinLimit         *float64 `json:"min_limit"`
	MaxLimit         *float64 `json:"max_limit"`
	TelegramUserID   *string  `json:"telegram_user_id"`
	TelegramBotToken *string  `json:"telegram_bot_token"`
}

// deviceView adds the derived liveness flag to the stored fields.
type deviceView struct {
	*models.Device
	IsOnline bool `json:"is_online"`
}

func viewOf(d *models.Device) deviceView {
	return deviceView{Device: d, IsOnline: d.IsOnline()}
}

// ownedDevice resolves {device_id} scoped to the authenticated user,
// writing the error response itself when the device is not visible.
func (r *Router) ownedDevice(w http.ResponseWriter, req *http.Request) (*models.Device, bool) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Invalid token claims")
		return nil, false
	}
	deviceID := mux.Vars(req)["device_id"]
	device, err := r.registry.FindOwned(req.Context(), userID, deviceID)
	if errors.Is(err, registry.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Device not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch device")
		return nil, false
	}
	return device, true
}

// listDevices returns the caller's devices
func (r *Router) listDevices(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Invalid token claims")
		return
	}
	devices, err := r.registry.ListOwned(req.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch devices")
		return
	}
	views := make([]deviceView, 0, len(devices))
	for i := range devices {
		views = append(views, viewOf(&devices[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// claimDevice registers a device id to the caller's account. The id must
// not exist under any owner.
func (r *Router) claimDevice(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Invalid token claims")
		return
	}
	var body ClaimDeviceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	device, err := r.registry.RegisterForOwner(req.Context(), &models.User{ID: userID}, body.DeviceID, body.Name)
	if errors.Is(err, registry.ErrAlreadyRegistered) {
		respondError(w, http.StatusConflict, "This device is already registered to another account")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to register device")
		return
	}
	respondJSON(w, http.StatusCreated, viewOf(device))
}

// getDevice returns one owned device with its queued-command count
func (r *Router) getDevice(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}
	pending, err := r.queue.PendingCount(req.Context(), device)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch device")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"device":           viewOf(device),
		"pending_commands": pending,
	})
}

// unregisterDevice removes the device and everything attached to it
func (r *Router) unregisterDevice(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Invalid token claims")
		return
	}
	deviceID := mux.Vars(req)["device_id"]
	err := r.registry.Unregister(req.Context(), userID, deviceID)
	if errors.Is(err, registry.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Device not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to remove device")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "removed",
		"device":  deviceID,
		"message": fmt.Sprintf("Device %s removed from your account", deviceID),
	})
}

// updateSettings applies a partial settings update. Fields validate and
// apply independently; rejected fields come back with reasons while the
// rest commit. A changed sampling interval also queues a
// change_reading_time command for the device's next check-in.
func (r *Router) updateSettings(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}
	var body SettingsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := r.registry.UpdateSettings(req.Context(), device, registry.SettingsUpdate{
		Name:             body.Name,
		SamplingInterval: body.SamplingInterval,
		MinLimit:         body.MinLimit,
		MaxLimit:         body.MaxLimit,
		TelegramUserID:   body.TelegramUserID,
		TelegramBotToken: body.TelegramBotToken,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	if result.IntervalChanged {
		payload := strconv.Itoa(device.SamplingInterval)
		if _, err := r.queue.Enqueue(req.Context(), device, models.CommandChangeReadingTime, payload); err != nil {
			// The setting itself is saved; the device just won't be told
			// until the operator retries.
			result.Rejected["change_reading_time_command"] = err.Error()
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"device":   viewOf(device),
		"applied":  result.Applied,
		"rejected": result.Rejected,
	})
}

// claimQR renders the device id as a QR code for the claim flow
func (r *Router) claimQR(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}
	png, err := qrcode.Encode(fmt.Sprintf("%s/claim?device_id=%s", r.cfg.BaseURL, device.DeviceID), qrcode.Medium, 256)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate QR")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
