package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/records"
)

func newTestStore(t *testing.T) *records.Store {
	t.Helper()
	store, err := records.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type stubSink struct {
	result notify.Result
	users  []records.User
	kinds  []notify.Kind
}

func (s *stubSink) Send(_ context.Context, user records.User, kind notify.Kind, _ notify.TemplateData) notify.Result {
	s.users = append(s.users, user)
	s.kinds = append(s.kinds, kind)
	return s.result
}
