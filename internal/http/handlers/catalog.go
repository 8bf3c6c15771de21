package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/bloodlab-platform/internal/catalog"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

const defaultPopularity = 50

// CatalogHandler serves the test catalog to patients and staff.
type CatalogHandler struct {
	store  *records.Store
	logger *logging.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(store *records.Store, logger *logging.Logger) *CatalogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CatalogHandler{store: store, logger: logger}
}

// TestView is a catalog entry with its display price.
type TestView struct {
	records.Test
	PriceLabel string `json:"priceLabel"`
}

func viewOf(t records.Test) TestView {
	return TestView{Test: t, PriceLabel: catalog.FormatINR(t.Price)}
}

// Routes mounts the public GET / and GET /{testID}.
func (h *CatalogHandler) Routes(r chi.Router) {
	r.Get("/", h.ListTests)
	r.Get("/{testID}", h.GetTest)
}

// AdminRoutes mounts the catalog management endpoints.
func (h *CatalogHandler) AdminRoutes(r chi.Router) {
	r.Get("/", h.ListTests)
	r.Post("/", h.CreateTest)
	r.Patch("/{testID}", h.UpdateTest)
	r.Put("/{testID}", h.UpdateTest)
	r.Delete("/{testID}", h.DeleteTest)
}

// ListTests returns the catalog, most popular first.
// GET /api/tests
func (h *CatalogHandler) ListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.store.Tests.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list tests", "error", err)
		jsonError(w, "Failed to fetch tests", http.StatusInternalServerError)
		return
	}
	sort.SliceStable(tests, func(i, j int) bool {
		if tests[i].Popularity != tests[j].Popularity {
			return tests[i].Popularity > tests[j].Popularity
		}
		return tests[i].Name < tests[j].Name
	})
	out := make([]TestView, 0, len(tests))
	for _, t := range tests {
		out = append(out, viewOf(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTest returns one catalog entry.
// GET /api/tests/{testID}
func (h *CatalogHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Tests.Get(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		h.storeError(w, err, "Failed to fetch test")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// CreateTestRequest is the body of a catalog insert.
type CreateTestRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Popularity  int    `json:"popularity,omitempty"`
}

// CreateTest adds a test to the catalog.
// POST /api/admin/tests
func (h *CatalogHandler) CreateTest(w http.ResponseWriter, r *http.Request) {
	var req CreateTestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, "name required", http.StatusBadRequest)
		return
	}
	if req.Price < 0 {
		jsonError(w, "price must not be negative", http.StatusBadRequest)
		return
	}
	if req.Popularity == 0 {
		req.Popularity = defaultPopularity
	}
	t := records.Test{
		ID:          defaultString(req.ID, "test_"+uuid.NewString()[:8]),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Popularity:  req.Popularity,
	}
	if err := h.store.Tests.Insert(r.Context(), t); err != nil {
		if errors.Is(err, records.ErrDuplicateID) {
			jsonError(w, "Test id already exists", http.StatusConflict)
			return
		}
		h.logger.Error("failed to create test", "error", err)
		jsonError(w, "Failed to create test", http.StatusInternalServerError)
		return
	}
	h.logger.Info("test created", "test_id", t.ID)
	writeJSON(w, http.StatusCreated, viewOf(t))
}

// UpdateTest applies a patch to a catalog entry.
// PATCH /api/admin/tests/{testID}
func (h *CatalogHandler) UpdateTest(w http.ResponseWriter, r *http.Request) {
	var patch records.TestPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.Price != nil && *patch.Price < 0 {
		jsonError(w, "price must not be negative", http.StatusBadRequest)
		return
	}
	updated, err := h.store.Tests.Update(r.Context(), chi.URLParam(r, "testID"), func(t *records.Test) error {
		patch.Apply(t)
		return nil
	})
	if err != nil {
		h.storeError(w, err, "Failed to update test")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(updated))
}

// DeleteTest removes a catalog entry and returns it.
// DELETE /api/admin/tests/{testID}
func (h *CatalogHandler) DeleteTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "testID")
	t, err := h.store.Tests.Get(r.Context(), id)
	if err == nil {
		err = h.store.Tests.Delete(r.Context(), id)
	}
	if err != nil {
		h.storeError(w, err, "Failed to delete test")
		return
	}
	h.logger.Info("test deleted", "test_id", id)
	writeJSON(w, http.StatusOK, viewOf(t))
}

func (h *CatalogHandler) storeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, records.ErrNotFound) {
		jsonError(w, "Test not found", http.StatusNotFound)
		return
	}
	h.logger.Error(msg, "error", err)
	jsonError(w, msg, http.StatusInternalServerError)
}
