package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/psantana5/lumirender/pkg/logging"
	"github.com/psantana5/lumirender/pkg/models"
	"github.com/psantana5/lumirender/pkg/scheduler"
)

// Handler serves the control and playback API of one scheduler
type Handler struct {
	sched  *scheduler.Scheduler
	rig    *models.DeviceSet
	logger *logging.Logger

	// playMu serializes cursor walks over the frame stores
	playMu sync.Mutex
}

// NewHandler creates a handler over a scheduler and the rig its control
// loop submits
func NewHandler(s *scheduler.Scheduler, rig *models.DeviceSet, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		sched:  s,
		rig:    rig,
		logger: logger.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/status", h.Status).Methods("GET")

	// Mode routes
	r.HandleFunc("/mode/interactive", h.StartInteractive).Methods("POST")
	r.HandleFunc("/mode/recording", h.StartRecording).Methods("POST")
	r.HandleFunc("/mode/end-recording", h.EndRecording).Methods("POST")
	r.HandleFunc("/mode/stop", h.Stop).Methods("POST")
	r.HandleFunc("/reset", h.Reset).Methods("POST")

	// Device routes
	r.HandleFunc("/devices", h.ListDevices).Methods("GET")
	r.HandleFunc("/devices/{id}", h.GetDevice).Methods("GET")
	r.HandleFunc("/devices/{id}", h.UpdateDevice).Methods("PUT")

	// Playback routes
	r.HandleFunc("/frames", h.ListFrames).Methods("GET")
	r.HandleFunc("/frames/{index}", h.GetFrame).Methods("GET")
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Status returns mode, queue and progress
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

// StartInteractive leaves any recording or drain and renders live
func (h *Handler) StartInteractive(w http.ResponseWriter, r *http.Request) {
	h.modeChange(w, r, "interactive", h.sched.StartInteractive)
}

// StartRecording begins recording the submitted states
func (h *Handler) StartRecording(w http.ResponseWriter, r *http.Request) {
	h.modeChange(w, r, "recording", h.sched.StartRecording)
}

// EndRecording drains the recorded states at full quality
func (h *Handler) EndRecording(w http.ResponseWriter, r *http.Request) {
	h.modeChange(w, r, "end-recording", h.sched.EndRecording)
}

// Stop joins the worker; the scheduler accepts nothing until reset
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.modeChange(w, r, "stop", h.sched.Stop)
}

// Reset returns to an empty interactive scheduler
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.modeChange(w, r, "reset", func() error {
		return h.sched.Reset(h.sched.Backend().Interrupt)
	})
}

func (h *Handler) modeChange(w http.ResponseWriter, r *http.Request, action string, fn func() error) {
	if err := fn(); err != nil {
		h.logger.Warn("Mode change rejected", map[string]interface{}{
			"action":     action,
			"error":      err.Error(),
			"request_id": GetRequestID(r),
		})
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sched.Status())
}

type devicesResponse struct {
	Devices []*models.Device `json:"devices"`
	Count   int              `json:"count"`
}

// ListDevices returns the rig
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.rig.Devices()
	writeJSON(w, http.StatusOK, devicesResponse{Devices: devices, Count: len(devices)})
}

// GetDevice returns one device
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := h.rig.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("Device %s not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateDevice sets parameters from a JSON object of name to value. The
// control loop submits the change on its next tick.
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.rig.Get(id); !ok {
		http.Error(w, fmt.Sprintf("Device %s not found", id), http.StatusNotFound)
		return
	}

	var params map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(params) == 0 {
		http.Error(w, "No parameters given", http.StatusBadRequest)
		return
	}

	for name, value := range params {
		if err := h.rig.SetParam(id, name, value); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	d, _ := h.rig.Get(id)
	writeJSON(w, http.StatusOK, d)
}

// writeSchedulerError maps scheduler state errors to 409
func writeSchedulerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduler.ErrClosed),
		errors.Is(err, scheduler.ErrAlreadyStarted),
		errors.Is(err, models.ErrInvalidModeTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, scheduler.ErrDeviceNotOwned):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
