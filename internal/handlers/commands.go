package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ecomonitor-io/ecomonitorgo/internal/commands"
	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
)

// SendCommandRequest queues one command for a device
type SendCommandRequest struct {
	CommandType string `json:"command_type"`
	Payload     string `json:"payload"`
}

// sendCommand queues a command for delivery on the device's next check-in
func (r *Router) sendCommand(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}
	var body SendCommandRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.CommandType == "" {
		respondError(w, http.StatusBadRequest, "command_type is required")
		return
	}

	cmd, err := r.queue.Enqueue(req.Context(), device, models.CommandType(body.CommandType), body.Payload)
	if errors.Is(err, commands.ErrUnknownCommandType) {
		respondError(w, http.StatusBadRequest, "unknown command_type")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to queue command")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "command_queued",
		"command_id": cmd.ID,
		"device":     device.DeviceID,
	})
}

// commandHistory lists the device's commands, most recent first
func (r *Router) commandHistory(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	history, err := r.queue.History(req.Context(), device, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch command history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}
