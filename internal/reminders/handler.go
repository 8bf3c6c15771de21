package reminders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Handler exposes reminder administration endpoints.
type Handler struct {
	scheduler *Scheduler
	logger    *logging.Logger
}

func NewHandler(scheduler *Scheduler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{scheduler: scheduler, logger: logger}
}

// Routes mounts the reminder endpoints, expected under /api/admin/reminders.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/generate", h.generate)
	r.Post("/dispatch", h.dispatch)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	events, err := h.scheduler.List(r.Context())
	if err != nil {
		h.logger.Error("reminders handler: list", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if events == nil {
		events = []Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

type createRequest struct {
	UserID    string    `json:"userId"`
	BookingID string    `json:"bookingId"`
	Kind      string    `json:"kind"`
	When      time.Time `json:"when"`
	DedupKey  string    `json:"dedupKey"`
	TestName  string    `json:"testName"`
	TestDate  string    `json:"testDate"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	kind := notify.Kind(strings.TrimSpace(req.Kind))
	if strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId required"})
		return
	}
	switch kind {
	case KindMedicine, KindFollowup, KindAnnual:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be medicine, followup_test or annual_checkup"})
		return
	}

	ev, err := h.scheduler.Create(r.Context(), Event{
		DedupKey:    strings.TrimSpace(req.DedupKey),
		UserID:      strings.TrimSpace(req.UserID),
		BookingID:   req.BookingID,
		Kind:        kind,
		ScheduledAt: req.When,
		TestName:    req.TestName,
		TestDate:    req.TestDate,
	})
	if errors.Is(err, ErrDuplicateKey) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "reminder already exists"})
		return
	}
	if err != nil {
		h.logger.Error("reminders handler: create", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	report, err := h.scheduler.Generate(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Reminder generation triggered", "report": report})
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	report, err := h.scheduler.Dispatch(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": report})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
