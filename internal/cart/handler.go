package cart

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/bloodlab-platform/internal/catalog"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// CookieName holds the anonymous browsing-session id carts are keyed by.
const CookieName = "bl_cart"

// Handler serves the cart endpoints.
type Handler struct {
	store  Store
	logger *logging.Logger
	secure bool
}

// NewHandler creates a cart handler. secure marks the cart cookie Secure.
func NewHandler(store Store, logger *logging.Logger, secure bool) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger, secure: secure}
}

// View is the JSON shape returned by every cart endpoint.
type View struct {
	Lines        []PricedLine `json:"lines"`
	Unpriced     []string     `json:"unpriced,omitempty"`
	Summary      Summary      `json:"summary"`
	SubtotalText string       `json:"subtotalText"`
	DiscountText string       `json:"discountText"`
	TotalText    string       `json:"totalText"`
	Message      string       `json:"message,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// NewView renders c for clients.
func NewView(c *Cart) View {
	priced := c.PricedLines()
	known := make(map[string]struct{}, len(priced))
	for _, l := range priced {
		known[l.TestID] = struct{}{}
	}
	var unpriced []string
	for _, l := range c.Lines() {
		if _, ok := known[l.TestID]; !ok {
			unpriced = append(unpriced, l.TestID)
		}
	}
	if priced == nil {
		priced = []PricedLine{}
	}
	s := c.Summary()
	return View{
		Lines:        priced,
		Unpriced:     unpriced,
		Summary:      s,
		SubtotalText: catalog.FormatINR(s.Subtotal),
		DiscountText: catalog.FormatINR(s.Discount),
		TotalText:    catalog.FormatINR(s.Total),
	}
}

// SessionID returns the cart session id for r, issuing a cookie when absent.
func SessionID(w http.ResponseWriter, r *http.Request, secure bool) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Routes mounts the cart endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{testID}", h.ChangeQuantity)
	r.Delete("/items/{testID}", h.RemoveItem)
	r.Post("/bundles", h.AddBundle)
	r.Post("/promo", h.ApplyPromo)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*Cart) (View, int)) {
	sessionID := SessionID(w, r, h.secure)
	c, err := h.store.Load(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cart unavailable"})
		return
	}
	view, status := fn(c)
	if err := h.store.Save(r.Context(), sessionID, c); err != nil {
		h.logger.Error("failed to save cart", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cart unavailable"})
		return
	}
	writeJSON(w, status, view)
}

// Get handles GET /api/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *Cart) (View, int) { return NewView(c), http.StatusOK })
}

// Clear handles DELETE /api/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *Cart) (View, int) {
		c.Clear()
		return NewView(c), http.StatusOK
	})
}

// AddItem handles POST /api/cart/items {"testId": "..."}.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TestID string `json:"testId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TestID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "testId is required"})
		return
	}
	h.mutate(w, r, func(c *Cart) (View, int) {
		c.AddTest(req.TestID)
		return NewView(c), http.StatusOK
	})
}

// ChangeQuantity handles PATCH /api/cart/items/{testID} {"delta": n}.
func (h *Handler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	testID := chi.URLParam(r, "testID")
	h.mutate(w, r, func(c *Cart) (View, int) {
		c.ChangeQuantity(testID, req.Delta)
		return NewView(c), http.StatusOK
	})
}

// RemoveItem handles DELETE /api/cart/items/{testID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "testID")
	h.mutate(w, r, func(c *Cart) (View, int) {
		c.RemoveTest(testID)
		return NewView(c), http.StatusOK
	})
}

// AddBundle handles POST /api/cart/bundles {"purpose": "..."}.
func (h *Handler) AddBundle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Purpose string `json:"purpose"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.mutate(w, r, func(c *Cart) (View, int) {
		if err := c.AddBundle(req.Purpose); err != nil {
			v := NewView(c)
			v.Error = "Unknown purpose"
			return v, http.StatusBadRequest
		}
		return NewView(c), http.StatusOK
	})
}

// ApplyPromo handles POST /api/cart/promo {"code": "..."}. An invalid code
// still saves the cart, since applying it cleared any previous promo.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.mutate(w, r, func(c *Cart) (View, int) {
		msg, err := c.ApplyPromo(req.Code)
		v := NewView(c)
		var promoErr *PromoError
		if errors.As(err, &promoErr) {
			v.Error = promoErr.Message
			return v, http.StatusBadRequest
		}
		v.Message = msg
		return v, http.StatusOK
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
