package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Handler serves the auth endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
	secure bool
}

// NewHandler creates an auth handler. secure marks the session cookie Secure.
func NewHandler(svc *Service, logger *logging.Logger, secure bool) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger, secure: secure}
}

// Routes mounts /api/auth endpoints. limit, when set, throttles every route
// that checks a code or password.
func (h *Handler) Routes(r chi.Router, limit func(http.Handler) http.Handler) {
	guarded := r
	if limit != nil {
		guarded = r.With(limit)
	}
	guarded.Post("/request-otp", h.RequestOTP)
	guarded.Post("/verify-otp", h.VerifyOTP)
	guarded.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Post("/signup", h.Signup)
}

type userResponse struct {
	OK   bool         `json:"ok"`
	User records.User `json:"user"`
}

func publicUser(u records.User) records.User {
	u.PasswordHash = ""
	return u
}

func (h *Handler) setSession(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.svc.sessions.TTL().Seconds()),
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error, op string) {
	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": inputErr.Message})
	case errors.Is(err, ErrInvalidOTP):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or expired"})
	case errors.Is(err, ErrNoPassword):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Account has no password, use OTP"})
	case errors.Is(err, ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	default:
		h.logger.Error(op+" failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
	}
}

// RequestOTP handles POST /api/auth/request-otp.
func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	ttl, err := h.svc.RequestOTP(r.Context(), req)
	if err != nil {
		h.fail(w, err, "OTP request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ttl_ms": ttl.Milliseconds()})
}

// VerifyOTP handles POST /api/auth/verify-otp.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	user, sessionID, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		h.fail(w, err, "OTP verification")
		return
	}
	h.setSession(w, sessionID)
	writeJSON(w, http.StatusOK, userResponse{OK: true, User: publicUser(user)})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	identifier := req.Identifier
	for _, alt := range []string{req.Email, req.Phone} {
		if identifier == "" {
			identifier = alt
		}
	}
	user, sessionID, err := h.svc.Login(r.Context(), identifier, req.Password)
	if err != nil {
		h.fail(w, err, "Login")
		return
	}
	h.setSession(w, sessionID)
	writeJSON(w, http.StatusOK, userResponse{OK: true, User: publicUser(user)})
}

// Signup handles POST /api/auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	user, sessionID, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		h.fail(w, err, "Signup")
		return
	}
	h.setSession(w, sessionID)
	writeJSON(w, http.StatusCreated, publicUser(user))
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		if err := h.svc.Logout(r.Context(), c.Value); err != nil {
			h.logger.Error("logout failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Logout failed"})
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", HttpOnly: true, Secure: h.secure, SameSite: http.SameSiteLaxMode, MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context())
	switch {
	case errors.Is(err, ErrNoSession):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	case errors.Is(err, records.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
	case err != nil:
		h.logger.Error("me lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed"})
	default:
		writeJSON(w, http.StatusOK, publicUser(user))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
