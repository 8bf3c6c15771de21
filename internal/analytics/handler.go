package analytics

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Identity resolves the logged-in user of a request.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Handler serves the analytics and health score endpoints.
type Handler struct {
	svc      *Service
	identity Identity
	logger   *logging.Logger
}

// NewHandler creates the handler. identity gates the health score route to
// the score's owner; the admin routes do not use it.
func NewHandler(svc *Service, identity Identity, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, identity: identity, logger: logger}
}

// AdminRoutes mounts GET /stats, /user-growth and /revenue.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/stats", h.Stats)
	r.Get("/user-growth", h.UserGrowth)
	r.Get("/revenue", h.Revenue)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch statistics")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) UserGrowth(w http.ResponseWriter, r *http.Request) {
	growth, err := h.svc.UserGrowth(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch user growth data")
		return
	}
	writeJSON(w, http.StatusOK, growth)
}

func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	revenue, err := h.svc.Revenue(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch revenue data")
		return
	}
	writeJSON(w, http.StatusOK, revenue)
}

// HealthScore handles GET /api/healthscore/{userID}. Users only see their own.
func (h *Handler) HealthScore(w http.ResponseWriter, r *http.Request) {
	var current string
	var ok bool
	if h.identity != nil {
		current, ok = h.identity.CurrentUserID(r.Context())
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		return
	}
	userID := chi.URLParam(r, "userID")
	if userID != current {
		h.logger.Warn("health score requested for another user", "user_id", current, "requested", userID)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
		return
	}
	score, err := h.svc.HealthScore(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to compute health score")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	h.logger.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
