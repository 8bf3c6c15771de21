package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/bloodlab-platform/internal/cart"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Handler serves booking submission and the admin booking endpoints.
type Handler struct {
	svc    *Service
	carts  cart.Store
	logger *logging.Logger
	secure bool
}

// NewHandler creates a booking handler. carts is the store the cart endpoints write to.
func NewHandler(svc *Service, carts cart.Store, logger *logging.Logger, secure bool) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, carts: carts, logger: logger, secure: secure}
}

// Routes mounts the patient-facing booking endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Submit)
	r.Get("/mine", h.Mine)
	r.Get("/slots", h.Slots)
}

// AdminRoutes mounts the admin booking endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/user/{userID}", h.ListForUser)
	r.Patch("/{bookingID}", h.Update)
	r.Delete("/{bookingID}", h.Delete)
}

// Submit handles POST /api/bookings.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	sessionID := cart.SessionID(w, r, h.secure)
	c, err := h.carts.Load(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cart unavailable"})
		return
	}

	res, err := h.svc.Submit(r.Context(), c, req)
	if err != nil {
		h.writeError(w, err, "Failed to create booking")
		return
	}
	if err := h.carts.Save(r.Context(), sessionID, c); err != nil {
		// bookings are already written, so the submission still succeeds
		h.logger.Error("failed to clear cart after booking", "booking_id", res.ConfirmationID, "error", err)
	}
	writeJSON(w, http.StatusCreated, res)
}

// Mine handles GET /api/bookings/mine.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.svc.identity.CurrentUserID(r.Context())
	if !ok {
		h.writeError(w, ErrUnauthenticated, "")
		return
	}
	bookings, err := h.svc.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "Failed to fetch bookings")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

// Slots handles GET /api/bookings/slots?date=YYYY-MM-DD.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	now := h.svc.Now()
	day := now
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(records.DateLayout, raw, h.svc.Location())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format(records.DateLayout),
		"slots": AvailableSlots(day, now),
	})
}

// List handles GET /api/admin/bookings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to fetch bookings")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

// ListForUser handles GET /api/admin/bookings/user/{userID}.
func (h *Handler) ListForUser(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err, "Failed to fetch bookings")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

// Update handles PATCH /api/admin/bookings/{bookingID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch records.BookingPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	updated, err := h.svc.Update(r.Context(), chi.URLParam(r, "bookingID"), patch)
	if err != nil {
		h.writeError(w, err, "Failed to update booking")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/admin/bookings/{bookingID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "bookingID")); err != nil {
		h.writeError(w, err, "Failed to delete booking")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr)
	case errors.Is(err, ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": MsgLoginFirst})
	case errors.Is(err, records.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Booking not found"})
	default:
		h.logger.Error(fallback, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}

func nonNil(b []records.Booking) []records.Booking {
	if b == nil {
		return []records.Booking{}
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
