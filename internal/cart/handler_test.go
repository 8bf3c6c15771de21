package cart

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

func newCartRouter(t *testing.T) http.Handler {
	t.Helper()
	store, _ := newRedisStore(t)
	h := NewHandler(store, logging.Default(), false)
	r := chi.NewRouter()
	r.Route("/api/cart", h.Routes)
	return r
}

func doCart(t *testing.T, router http.Handler, method, path string, body any, cookie *http.Cookie) (*httptest.ResponseRecorder, View) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var view View
	_ = json.Unmarshal(rec.Body.Bytes(), &view)
	return rec, view
}

func TestCartHandlerFlow(t *testing.T) {
	router := newCartRouter(t)

	rec, view := doCart(t, router, http.MethodPost, "/api/cart/items", map[string]string{"testId": "cbc"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	session := cookies[0]
	assert.Equal(t, int64(350), view.Summary.Total)

	_, view = doCart(t, router, http.MethodPost, "/api/cart/items", map[string]string{"testId": "fullbody"}, session)
	assert.Equal(t, int64(2349), view.Summary.Subtotal)
	assert.Equal(t, "₹2,349", view.SubtotalText)

	rec, view = doCart(t, router, http.MethodPost, "/api/cart/promo", map[string]string{"code": "welcome10"}, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Applied: WELCOME10 (10% off)", view.Message)
	assert.Equal(t, int64(2114), view.Summary.Total)

	rec, view = doCart(t, router, http.MethodPost, "/api/cart/promo", map[string]string{"code": "nope"}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgInvalidPromo, view.Error)
	assert.Equal(t, int64(2349), view.Summary.Total)

	_, view = doCart(t, router, http.MethodPatch, "/api/cart/items/cbc", map[string]int{"delta": -1}, session)
	assert.Len(t, view.Lines, 1)
	assert.Equal(t, "fullbody", view.Lines[0].TestID)

	_, view = doCart(t, router, http.MethodDelete, "/api/cart/items/fullbody", nil, session)
	assert.Empty(t, view.Lines)
}

func TestCartHandlerRejectsMissingTestID(t *testing.T) {
	router := newCartRouter(t)
	rec, _ := doCart(t, router, http.MethodPost, "/api/cart/items", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHandlerBundles(t *testing.T) {
	router := newCartRouter(t)
	rec, view := doCart(t, router, http.MethodPost, "/api/cart/bundles", map[string]string{"purpose": "heart"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1850), view.Summary.Subtotal)

	rec, view = doCart(t, router, http.MethodPost, "/api/cart/bundles", map[string]string{"purpose": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown purpose", view.Error)
}
