package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/bloodlab-platform/internal/auth"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// AdminUsersHandler handles admin API endpoints for patient accounts.
type AdminUsersHandler struct {
	store  *records.Store
	logger *logging.Logger
	now    func() time.Time
}

// NewAdminUsersHandler creates a new admin users handler.
func NewAdminUsersHandler(store *records.Store, logger *logging.Logger) *AdminUsersHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminUsersHandler{store: store, logger: logger, now: time.Now}
}

// Routes mounts the user management endpoints.
func (h *AdminUsersHandler) Routes(r chi.Router) {
	r.Get("/", h.ListUsers)
	r.Post("/", h.CreateUser)
	r.Get("/{userID}", h.GetUser)
	r.Patch("/{userID}", h.UpdateUser)
	r.Put("/{userID}", h.UpdateUser)
	r.Delete("/{userID}", h.DeleteUser)
}

func publicUser(u records.User) records.User {
	u.PasswordHash = ""
	return u
}

// ListUsers returns every account.
// GET /api/admin/users
func (h *AdminUsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		jsonError(w, "Failed to fetch users", http.StatusInternalServerError)
		return
	}
	out := make([]records.User, 0, len(users))
	for _, u := range users {
		out = append(out, publicUser(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetUser returns one account.
// GET /api/admin/users/{userID}
func (h *AdminUsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.Users.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.storeError(w, err, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, publicUser(u))
}

// CreateUserRequest is the body of an admin-created account.
type CreateUserRequest struct {
	Name     string             `json:"name"`
	Email    string             `json:"email,omitempty"`
	Phone    string             `json:"phone,omitempty"`
	Password string             `json:"password,omitempty"`
	Status   records.UserStatus `json:"status,omitempty"`
}

// CreateUser adds an account on behalf of a patient.
// POST /api/admin/users
func (h *AdminUsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		jsonError(w, "name required", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		req.Status = records.UserActive
	}

	ctx := r.Context()
	if conflict, err := h.contactTaken(r, req.Email, req.Phone); err != nil {
		h.logger.Error("failed to check user contacts", "error", err)
		jsonError(w, "Failed to create user", http.StatusInternalServerError)
		return
	} else if conflict != "" {
		jsonError(w, conflict, http.StatusBadRequest)
		return
	}

	u := records.User{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Status:           req.Status,
		RegistrationDate: h.now().UTC(),
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			h.logger.Error("failed to hash password", "error", err)
			jsonError(w, "Failed to create user", http.StatusInternalServerError)
			return
		}
		u.PasswordHash = hash
	}
	if err := h.store.Users.Insert(ctx, u); err != nil {
		h.logger.Error("failed to create user", "error", err)
		jsonError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	h.logger.Info("user created by admin", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, publicUser(u))
}

func (h *AdminUsersHandler) contactTaken(r *http.Request, email, phone string) (string, error) {
	if email != "" {
		if _, err := h.store.FindUserByContact(r.Context(), email); err == nil {
			return "Email already exists", nil
		} else if !errors.Is(err, records.ErrNotFound) {
			return "", err
		}
	}
	if phone != "" {
		if _, err := h.store.FindUserByContact(r.Context(), phone); err == nil {
			return "Phone already registered", nil
		} else if !errors.Is(err, records.ErrNotFound) {
			return "", err
		}
	}
	return "", nil
}

// UpdateUser applies a patch to an account.
// PATCH /api/admin/users/{userID}
func (h *AdminUsersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch records.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.Status != nil {
		switch *patch.Status {
		case records.UserActive, records.UserInactive, records.UserSuspended:
		default:
			jsonError(w, "invalid status", http.StatusBadRequest)
			return
		}
	}
	updated, err := h.store.Users.Update(r.Context(), chi.URLParam(r, "userID"), func(u *records.User) error {
		patch.Apply(u)
		return nil
	})
	if err != nil {
		h.storeError(w, err, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, publicUser(updated))
}

// DeleteUser removes an account and returns it. Bookings are kept.
// DELETE /api/admin/users/{userID}
func (h *AdminUsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	u, err := h.store.Users.Get(r.Context(), id)
	if err == nil {
		err = h.store.Users.Delete(r.Context(), id)
	}
	if err != nil {
		h.storeError(w, err, "Failed to delete user")
		return
	}
	h.logger.Info("user deleted by admin", "user_id", id)
	writeJSON(w, http.StatusOK, publicUser(u))
}

func (h *AdminUsersHandler) storeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, records.ErrNotFound) {
		jsonError(w, "User not found", http.StatusNotFound)
		return
	}
	h.logger.Error(msg, "error", err)
	jsonError(w, msg, http.StatusInternalServerError)
}
