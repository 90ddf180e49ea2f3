// AngelaMos | 2026
// handler_test.go

package book

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bookshelf/internal/access"
	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/middleware"
)

func as(v core.Viewer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithViewer(r.Context(), v)))
		})
	}
}

func routerFor(svc *Service, v core.Viewer) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()
	h.RegisterRoutes(r, as(v))
	h.RegisterAdminRoutes(r, as(v), middleware.RequireAdmin)
	return r
}

type errorBody struct {
	Error core.ErrorBody `json:"error"`
}

func multipartBody(t *testing.T, metadata string, pdf []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("metadata", metadata))
	if pdf != nil {
		part, err := mw.CreateFormFile("pdf", "dune.pdf")
		require.NoError(t, err)
		_, err = part.Write(pdf)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestCreateOverHTTP(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.mock.ExpectQuery("INSERT INTO books").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	body, contentType := multipartBody(t, `{"name":"Dune","author":"Frank Herbert","price":4.5}`, minimalPDF(2))
	req := httptest.NewRequest(http.MethodPost, "/admin/books/", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	routerFor(f.svc, adminViewer).ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data BookResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Dune", resp.Data.Name)
	assert.Equal(t, 2, resp.Data.TotalPages)
	assert.Equal(t, 1, f.store.Len())
}

func TestCreateOverHTTPRejections(t *testing.T) {
	tests := []struct {
		name     string
		viewer   core.Viewer
		metadata string
		pdf      []byte
		status   int
		code     string
	}{
		{"not admin", userViewer, `{"name":"Dune","author":"F"}`, minimalPDF(1), http.StatusForbidden, "FORBIDDEN"},
		{"missing name", adminViewer, `{"author":"F"}`, minimalPDF(1), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank name and author", adminViewer, `{"name":"   ","author":"  "}`, minimalPDF(1), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative price", adminViewer, `{"name":"Dune","author":"F","price":-1}`, minimalPDF(1), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no pdf part", adminViewer, `{"name":"Dune","author":"F"}`, nil, http.StatusUnprocessableEntity, "INVALID_FILE"},
		{"not a pdf", adminViewer, `{"name":"Dune","author":"F"}`, []byte("hello"), http.StatusUnprocessableEntity, "INVALID_FILE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			body, contentType := multipartBody(t, tc.metadata, tc.pdf)
			req := httptest.NewRequest(http.MethodPost, "/admin/books/", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			routerFor(f.svc, tc.viewer).ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())

			var resp errorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.code, resp.Error.Code)
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestReadOverHTTPDistinguishesExpiry(t *testing.T) {
	tests := []struct {
		status access.Status
		code   string
	}{
		{access.StatusExpired, "ACCESS_EXPIRED"},
		{access.StatusNone, "ACCESS_DENIED"},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newFixture(t)
			f.access.status = tc.status
			f.mock.ExpectQuery("FROM books b").
				WithArgs(testBookID).
				WillReturnRows(bookRow("pdf/x/dune.pdf", ""))

			rec := httptest.NewRecorder()
			routerFor(f.svc, userViewer).ServeHTTP(rec, httptest.NewRequest(
				http.MethodGet, "/books/"+testBookID+"/read", nil,
			))
			require.Equal(t, http.StatusForbidden, rec.Code)

			var resp errorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestGetUnknownBookOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	routerFor(f.svc, userViewer).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
