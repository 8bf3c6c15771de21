package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bloodlab-platform/internal/records"
)

type mockS3 struct {
	objects     map[string][]byte
	contentType map[string]string
	buckets     []string
	putErr      error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string][]byte{}, contentType: map[string]string{}}
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.buckets = append(m.buckets, aws.ToString(in.Bucket))
	m.objects[aws.ToString(in.Key)] = body
	m.contentType[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: aws.String(m.contentType[aws.ToString(in.Key)]),
	}, nil
}

type staticIdentity string

func (s staticIdentity) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}

func newFixture(t *testing.T) (*Store, *mockS3, *records.Store) {
	t.Helper()
	rs, err := records.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, rs.Bookings.Insert(context.Background(), records.Booking{
		ID: "b1", UserID: "u1", TestName: "CBC", Date: "2026-03-10", Time: "09:00",
		Amount: 350, Quantity: 1, Status: records.BookingCompleted,
	}))
	s3c := newMockS3()
	store := NewStore(s3c, "lab-reports", rs, nil)
	store.now = func() time.Time { return time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC) }
	return store, s3c, rs
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "reports/b1/cbc.pdf", ObjectKey("b1", "cbc.pdf"))
	assert.Equal(t, "reports/b1/passwd", ObjectKey("b1", "../../etc/passwd"))
	assert.Equal(t, "reports/b1/my_report_1_.pdf", ObjectKey("b1", `C:\scans\my report (1).pdf`))
	assert.Equal(t, "reports/b1/report", ObjectKey("b1", ""))
}

func TestAttachAndOpen(t *testing.T) {
	store, s3c, rs := newFixture(t)
	ctx := context.Background()

	booking, err := store.Attach(ctx, "b1", "u1", Upload{Filename: "cbc.pdf", ContentType: "application/pdf", Size: 3, Body: bytes.NewReader([]byte("pdf"))})
	require.NoError(t, err)
	assert.Equal(t, "reports/b1/cbc.pdf", booking.Metadata[MetadataKey])
	assert.Equal(t, "2026-03-11T12:00:00Z", booking.Metadata["reportUploaded"])
	assert.Equal(t, []string{"lab-reports"}, s3c.buckets)
	assert.Equal(t, []byte("pdf"), s3c.objects["reports/b1/cbc.pdf"])

	stored, err := rs.Bookings.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "reports/b1/cbc.pdf", stored.Metadata[MetadataKey])

	rep, err := store.Open(ctx, "b1", "u1")
	require.NoError(t, err)
	defer rep.Body.Close()
	body, err := io.ReadAll(rep.Body)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(body))
	assert.Equal(t, "application/pdf", rep.ContentType)
}

func TestAttach_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		rs, err := records.NewJSONStore(t.TempDir())
		require.NoError(t, err)
		_, err = NewStore(newMockS3(), "", rs, nil).Attach(ctx, "b1", "", Upload{Body: bytes.NewReader(nil)})
		assert.ErrorIs(t, err, ErrDisabled)
	})

	t.Run("unknown booking", func(t *testing.T) {
		store, _, _ := newFixture(t)
		_, err := store.Attach(ctx, "nope", "", Upload{Body: bytes.NewReader(nil)})
		assert.ErrorIs(t, err, records.ErrNotFound)
	})

	t.Run("other user", func(t *testing.T) {
		store, s3c, _ := newFixture(t)
		_, err := store.Attach(ctx, "b1", "u2", Upload{Filename: "x.pdf", Body: bytes.NewReader([]byte("x"))})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Empty(t, s3c.objects)
	})

	t.Run("s3 failure leaves booking unlinked", func(t *testing.T) {
		store, s3c, rs := newFixture(t)
		s3c.putErr = errors.New("throttled")
		_, err := store.Attach(ctx, "b1", "", Upload{Filename: "x.pdf", Body: bytes.NewReader([]byte("x"))})
		require.Error(t, err)
		b, err := rs.Bookings.Get(ctx, "b1")
		require.NoError(t, err)
		assert.Empty(t, b.Metadata[MetadataKey])
	})

	t.Run("open without report", func(t *testing.T) {
		store, _, _ := newFixture(t)
		_, err := store.Open(ctx, "b1", "u1")
		assert.ErrorIs(t, err, ErrNoReport)
	})
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="report"; filename="`+filename+`"`)
	hdr.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandler(t *testing.T) {
	store, _, _ := newFixture(t)

	route := func(h *Handler) http.Handler {
		r := chi.NewRouter()
		r.Route("/api/bookings", h.Routes)
		return r
	}

	t.Run("anonymous", func(t *testing.T) {
		body, ct := multipartBody(t, "cbc.pdf", []byte("pdf"))
		req := httptest.NewRequest(http.MethodPost, "/api/bookings/b1/report", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		route(NewHandler(store, staticIdentity(""), nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("owner upload then download", func(t *testing.T) {
		h := route(NewHandler(store, staticIdentity("u1"), nil))
		body, ct := multipartBody(t, "cbc.pdf", []byte("pdf-bytes"))
		req := httptest.NewRequest(http.MethodPost, "/api/bookings/b1/report", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			OK  bool   `json:"ok"`
			Key string `json:"key"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, "reports/b1/cbc.pdf", resp.Key)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookings/b1/report", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pdf-bytes", rec.Body.String())
		assert.Equal(t, `attachment; filename="cbc.pdf"`, rec.Header().Get("Content-Disposition"))
	})

	t.Run("other user forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		route(NewHandler(store, staticIdentity("u2"), nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookings/b1/report", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin skips ownership", func(t *testing.T) {
		rec := httptest.NewRecorder()
		route(NewAdminHandler(store, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookings/b1/report", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/bookings/b1/report", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		route(NewHandler(store, staticIdentity("u1"), nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
