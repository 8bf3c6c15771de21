package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Handler serves the payment endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts POST /create-order and POST /verify.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/create-order", h.CreateOrder)
	r.Post("/verify", h.Verify)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in OrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	res, err := h.svc.CreateOrder(r.Context(), in)
	if err != nil {
		h.writeError(w, err, "Failed to create order")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var in VerifyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	booking, err := h.svc.Verify(r.Context(), in)
	if err != nil {
		h.writeError(w, err, "Verification failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "booking": booking})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid amount"})
	case errors.Is(err, ErrUnsupportedProvider):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unsupported provider"})
	case errors.Is(err, ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid signature"})
	case errors.Is(err, ErrOrderMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Order does not match booking"})
	case errors.Is(err, ErrBookingNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Booking not found"})
	case errors.Is(err, ErrSecretNotConfigured):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Razorpay secret not configured on server"})
	default:
		h.logger.Error(fallback, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
