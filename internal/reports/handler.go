package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Identity resolves the logged-in user of a request.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Handler serves report upload and download.
type Handler struct {
	store    *Store
	identity Identity
	admin    bool
	logger   *logging.Logger
}

// NewHandler serves patients; the logged-in user must own the booking.
func NewHandler(store *Store, identity Identity, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, identity: identity, logger: logger}
}

// NewAdminHandler serves staff routes that skip the ownership check.
func NewAdminHandler(store *Store, logger *logging.Logger) *Handler {
	h := NewHandler(store, nil, logger)
	h.admin = true
	return h
}

// Routes mounts POST and GET /{bookingID}/report.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{bookingID}/report", h.Upload)
	r.Get("/{bookingID}/report", h.Download)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxReportSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("report")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "report file required"})
		return
	}
	defer file.Close()
	if header.Size > MaxReportSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "report exceeds 10MB"})
		return
	}

	booking, err := h.store.Attach(r.Context(), chi.URLParam(r, "bookingID"), userID, Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.writeError(w, err, "Failed to upload report")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "key": booking.Metadata[MetadataKey], "booking": booking})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	rep, err := h.store.Open(r.Context(), chi.URLParam(r, "bookingID"), userID)
	if err != nil {
		h.writeError(w, err, "Failed to fetch report")
		return
	}
	defer rep.Body.Close()
	if rep.ContentType != "" {
		w.Header().Set("Content-Type", rep.ContentType)
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(rep.Key)+`"`)
	if _, err := io.Copy(w, rep.Body); err != nil {
		h.logger.Warn("report download interrupted", "s3_key", rep.Key, "error", err)
	}
}

// caller returns the user to check ownership against; empty for admins.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.admin {
		return "", true
	}
	if h.identity != nil {
		if userID, ok := h.identity.CurrentUserID(r.Context()); ok {
			return userID, true
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	return "", false
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Report storage not configured"})
	case errors.Is(err, records.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Booking not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
	case errors.Is(err, ErrNoReport):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No report uploaded"})
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
