package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ecomonitor-io/ecomonitorgo/internal/buildinfo"
	"github.com/ecomonitor-io/ecomonitorgo/internal/commands"
	"github.com/ecomonitor-io/ecomonitorgo/internal/config"
	"github.com/ecomonitor-io/ecomonitorgo/internal/database"
	"github.com/ecomonitor-io/ecomonitorgo/internal/ingest"
	"github.com/ecomonitor-io/ecomonitorgo/internal/middleware"
	"github.com/ecomonitor-io/ecomonitorgo/internal/notify"
	"github.com/ecomonitor-io/ecomonitorgo/internal/registry"
)

// Router wraps the mux router, the database and the core services
type Router struct {
	*mux.Router
	db       *database.DB
	cfg      *config.Config
	registry *registry.Registry
	queue    *commands.Queue
	ingest   *ingest.Service
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config) *Router {
	reg := registry.New(db.DB)
	queue := commands.New(db.DB)
	sink := notify.NewTelegramSink(cfg.Telegram)

	r := &Router{
		Router:   mux.NewRouter(),
		db:       db,
		cfg:      cfg,
		registry: reg,
		queue:    queue,
		ingest:   ingest.NewService(db.DB, reg, queue, sink, cfg.Ingest.AutoRegister),
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")

	// Device-facing ingestion endpoint (no auth; devices carry only their id)
	r.HandleFunc("/api/sensor-readings", r.sensorReading).Methods("POST")

	// Operator routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg))
	api.HandleFunc("/devices", r.listDevices).Methods("GET")
	api.HandleFunc("/devices", r.claimDevice).Methods("POST")
	api.HandleFunc("/devices/{device_id}", r.getDevice).Methods("GET")
	api.HandleFunc("/devices/{device_id}", r.unregisterDevice).Methods("DELETE")
	api.HandleFunc("/devices/{device_id}/settings", r.updateSettings).Methods("PATCH")
	api.HandleFunc("/devices/{device_id}/commands", r.sendCommand).Methods("POST")
	api.HandleFunc("/devices/{device_id}/commands", r.commandHistory).Methods("GET")
	api.HandleFunc("/devices/{device_id}/readings", r.listReadings).Methods("GET")
	api.HandleFunc("/devices/{device_id}/readings", r.clearReadings).Methods("DELETE")
	api.HandleFunc("/devices/{device_id}/readings/export", r.exportReadings).Methods("GET")
	api.HandleFunc("/devices/{device_id}/alerts", r.listAlerts).Methods("GET")
	api.HandleFunc("/devices/{device_id}/qr", r.claimQR).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"started_at": buildinfo.StartTime,
		"commit":     buildinfo.CommitHash,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
