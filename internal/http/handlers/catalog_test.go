package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bloodlab-platform/internal/records"
)

func newCatalogRouter(t *testing.T) (http.Handler, *records.Store) {
	t.Helper()
	store := newTestStore(t)
	_, err := store.SeedTests(context.Background())
	require.NoError(t, err)
	h := NewCatalogHandler(store, nil)
	r := chi.NewRouter()
	r.Route("/api/tests", h.Routes)
	r.Route("/api/admin/tests", h.AdminRoutes)
	return r, store
}

func TestListTests_SortedByPopularity(t *testing.T) {
	r, _ := newCatalogRouter(t)

	rec := serve(r, http.MethodGet, "/api/tests", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tests []TestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tests))
	require.Len(t, tests, len(records.DefaultTests()))
	assert.Equal(t, "cbc", tests[0].ID)
	assert.Equal(t, "₹350", tests[0].PriceLabel)
	for i := 1; i < len(tests); i++ {
		assert.GreaterOrEqual(t, tests[i-1].Popularity, tests[i].Popularity)
	}
}

func TestGetTest(t *testing.T) {
	r, _ := newCatalogRouter(t)

	rec := serve(r, http.MethodGet, "/api/tests/fullbody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got TestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1999), got.Price)
	assert.Equal(t, "₹1,999", got.PriceLabel)

	rec = serve(r, http.MethodGet, "/api/tests/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Test not found"}`, rec.Body.String())
}

func TestAdminTests_CRUD(t *testing.T) {
	r, store := newCatalogRouter(t)
	ctx := context.Background()

	rec := serve(r, http.MethodPost, "/api/admin/tests", `{"id":"iron","name":"Iron Studies","price":800}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created, err := store.Tests.Get(ctx, "iron")
	require.NoError(t, err)
	assert.Equal(t, 50, created.Popularity)

	rec = serve(r, http.MethodPost, "/api/admin/tests", `{"id":"iron","name":"Again","price":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(r, http.MethodPost, "/api/admin/tests", `{"name":" ","price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodPatch, "/api/admin/tests/iron", `{"price":750,"popularity":65}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated, err := store.Tests.Get(ctx, "iron")
	require.NoError(t, err)
	assert.Equal(t, int64(750), updated.Price)
	assert.Equal(t, 65, updated.Popularity)
	assert.Equal(t, "Iron Studies", updated.Name)

	rec = serve(r, http.MethodPatch, "/api/admin/tests/iron", `{"price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodDelete, "/api/admin/tests/iron", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = store.Tests.Get(ctx, "iron")
	assert.ErrorIs(t, err, records.ErrNotFound)

	rec = serve(r, http.MethodDelete, "/api/admin/tests/iron", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
