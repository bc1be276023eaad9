package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
)

const readingsPageSize = 100

// listReadings returns the latest readings for a device
func (r *Router) listReadings(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}
	var readings []models.SensorReading
	err := r.db.WithContext(req.Context()).
		Where("device_id = ?", device.ID).
		Order("created_at DESC").
		Limit(readingsPageSize).
		Find(&readings).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch readings")
		return
	}
	respondJSON(w, http.StatusOK, readings)
}

// clearReadings deletes all readings for a device
func (r *Router) clearReadings(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}
	if err := r.db.WithContext(req.Context()).
		Where("device_id = ?", device.ID).
		Delete(&models.SensorReading{}).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clear readings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// listAlerts returns the alert audit log for a device
func (r *Router) listAlerts(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}
	var events []models.AlertEvent
	err := r.db.WithContext(req.Context()).
		Where("device_id = ?", device.ID).
		Order("created_at DESC").
		Limit(readingsPageSize).
		Find(&events).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch alerts")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// exportReadings streams the device's full reading history as CSV, JSON or
// PDF, newest first.
func (r *Router) exportReadings(w http.ResponseWriter, req *http.Request) {
	device, ok := r.ownedDevice(w, req)
	if !ok {
		return
	}

	var readings []models.SensorReading
	err := r.db.WithContext(req.Context()).
		Where("device_id = ?", device.ID).
		Order("created_at DESC").
		Find(&readings).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch readings")
		return
	}

	format := req.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", device.DeviceID+"_readings.csv"))
		cw := csv.NewWriter(w)
		cw.Write([]string{"timestamp", "value"})
		for _, rd := range readings {
			cw.Write([]string{
				rd.CreatedAt.Format(time.RFC3339),
				fmt.Sprintf("%g", rd.Value),
			})
		}
		cw.Flush()

	case "json":
		type exportReading struct {
			CreatedAt string  `json:"created_at"`
			Value     float64 `json:"value"`
		}
		out := make([]exportReading, 0, len(readings))
		for _, rd := range readings {
			out = append(out, exportReading{
				CreatedAt: rd.CreatedAt.Format(time.RFC3339),
				Value:     rd.Value,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", device.DeviceID+"_readings.json"))
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(out)

	case "pdf":
		pdf := gofpdf.New("P", "mm", "A4", "")
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Cell(0, 10, fmt.Sprintf("%s (%s) - readings report", device.Name, device.DeviceID))
		pdf.Ln(12)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(70, 7, "Timestamp", "1", 0, "", false, 0, "")
		pdf.CellFormat(40, 7, "Value", "1", 1, "", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, rd := range readings {
			pdf.CellFormat(70, 6, rd.CreatedAt.Format(time.RFC3339), "1", 0, "", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%g", rd.Value), "1", 1, "", false, 0, "")
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", device.DeviceID+"_readings.pdf"))
		if err := pdf.Output(w); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to render PDF")
		}

	default:
		respondError(w, http.StatusBadRequest, "format must be csv, json or pdf")
	}
}
