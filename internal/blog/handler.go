package blog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Handler serves the blog index and post pages.
type Handler struct {
	blog   *Blog
	logger *logging.Logger
}

func NewHandler(b *Blog, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{blog: b, logger: logger}
}

// List handles GET /api/blogs.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.blog.List()
	if err != nil {
		h.logger.Error("failed to list blog posts", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Failed to list posts"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(posts)
}

// Post handles GET /blog/{slug}.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	page, err := h.blog.Render(chi.URLParam(r, "slug"))
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to render blog post", "error", err)
		http.Error(w, "Failed to render post", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
