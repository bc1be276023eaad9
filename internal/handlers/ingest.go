package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ecomonitor-io/ecomonitorgo/internal/ingest"
	"github.com/ecomonitor-io/ecomonitorgo/internal/registry"
)

// sensorReading is the device-facing check-in endpoint. One call either
// delivers a pending command or accepts a reading, never both.
func (r *Router) sensorReading(w http.ResponseWriter, req *http.Request) {
	var checkIn ingest.CheckIn
	if err := json.NewDecoder(req.Body).Decode(&checkIn); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// Devices have a limited retry budget; a slow store must become a clear
	// failure, not a hang.
	ctx, cancel := context.WithTimeout(req.Context(), r.cfg.Ingest.Timeout)
	defer cancel()

	result, err := r.ingest.ProcessCheckIn(ctx, checkIn)
	switch {
	case err == nil:
	case errors.Is(err, ingest.ErrDeviceIDRequired):
		respondError(w, http.StatusBadRequest, "device_id is required")
		return
	case errors.Is(err, registry.ErrNotRegistered):
		respondJSON(w, http.StatusNotFound, map[string]string{
			"error":   "Device not registered",
			"message": "Please register this device on the website first",
		})
		return
	case errors.Is(err, ingest.ErrValueRequired):
		respondError(w, http.StatusUnprocessableEntity, "value is required")
		return
	default:
		log.Printf("⚠️  Check-in failed for %q: %v", checkIn.DeviceID, err)
		respondError(w, http.StatusInternalServerError, "check-in failed")
		return
	}

	if result.Command != nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"command": string(result.Command.CommandType),
			"payload": result.Command.Payload,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"reading_id": result.Reading.ID,
	})
}
