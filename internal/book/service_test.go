// AngelaMos | 2026
// service_test.go

package book

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bookshelf/internal/access"
	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/storage"
	"github.com/carterperez-dev/bookshelf/internal/storage/storagetest"
)

const testBookID = "3f0c8a8e-6a57-4c39-9d0e-2f6f3b1d9a11"

var (
	adminViewer = core.Viewer{UserID: "admin-1", Role: core.RoleAdmin}
	userViewer  = core.Viewer{UserID: "user-1", Role: core.RoleUser}
	testBuckets = storage.Buckets{Books: "books", Covers: "covers"}

	bookColumns = []string{
		"id", "name", "author", "description", "category_id", "category_name",
		"pdf_path", "cover_path", "size_bytes", "total_pages", "price",
		"created_at", "updated_at", "created_by",
	}
)

type stubAccess struct {
	status access.Status
	err    error
	calls  int
}

func (s *stubAccess) Check(context.Context, core.Viewer, string) (access.Status, error) {
	s.calls++
	return s.status, s.err
}

type fixture struct {
	svc    *Service
	mock   sqlmock.Sqlmock
	store  *storagetest.MemoryStore
	access *stubAccess
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = mockDB.Close()
	})

	f := &fixture{
		mock:   mock,
		store:  storagetest.NewMemoryStore(),
		access: &stubAccess{status: access.StatusGranted},
	}
	f.svc = NewService(
		sqlx.NewDb(mockDB, "sqlmock"),
		f.store,
		testBuckets,
		f.access,
		Limits{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func bookRow(pdfPath, coverPath string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookColumns).AddRow(
		testBookID, "Dune", "Frank Herbert", "Spice", "fiction", "Fiction",
		pdfPath, coverPath, 2048, 412, 9.99, now, now, "admin-1",
	)
}

func metadata() CreateBookRequest {
	return CreateBookRequest{Name: " Dune ", Author: "Frank Herbert", Price: 9.99}
}

func TestCreateUploadsThenInserts(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.mock.ExpectQuery("INSERT INTO books").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	cover := uploadOf("cover.png", pngHeader)
	b, err := f.svc.Create(context.Background(), adminViewer, metadata(), uploadOf("Dune (1965).pdf", minimalPDF(4)), &cover)
	require.NoError(t, err)

	assert.Equal(t, "Dune", b.Name)
	assert.Equal(t, 4, b.TotalPages)
	assert.Equal(t, "admin-1", *b.CreatedBy)
	assert.True(t, strings.HasPrefix(b.PDFPath, "pdf/"+b.ID+"/"))
	assert.True(t, strings.HasSuffix(b.PDFPath, "Dune__1965_.pdf"))

	obj, ok := f.store.Get("books", b.PDFPath)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, minimalPDF(4), obj.Data)

	coverObj, ok := f.store.Get("covers", b.CoverPath)
	require.True(t, ok)
	assert.Equal(t, "image/png", coverObj.ContentType)
}

func TestCreatePrefersRequestedPageCount(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.mock.ExpectQuery("INSERT INTO books").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	req := metadata()
	pages := 500
	req.TotalPages = &pages

	b, err := f.svc.Create(context.Background(), adminViewer, req, uploadOf("dune.pdf", minimalPDF(1)), nil)
	require.NoError(t, err)
	assert.Equal(t, 500, b.TotalPages)
	assert.Empty(t, b.CoverPath)
}

func TestCreateCompensatesWhenInsertFails(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("INSERT INTO books").WillReturnError(errors.New("connection reset"))

	cover := uploadOf("cover.png", pngHeader)
	_, err := f.svc.Create(context.Background(), adminViewer, metadata(), uploadOf("dune.pdf", minimalPDF(1)), &cover)
	require.Error(t, err)

	assert.Equal(t, 0, f.store.Len(), "uploaded objects are removed after a failed insert")
}

func TestCreateCompensatesWhenCoverUploadFails(t *testing.T) {
	f := newFixture(t)
	f.store.FailPut = errors.New("bucket unavailable")
	f.store.FailPutBucket = "covers"

	cover := uploadOf("cover.png", pngHeader)
	_, err := f.svc.Create(context.Background(), adminViewer, metadata(), uploadOf("dune.pdf", minimalPDF(1)), &cover)
	require.Error(t, err)

	assert.Equal(t, 0, f.store.Len())
}

func TestCreateRejectsBeforeUploading(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), userViewer, metadata(), uploadOf("dune.pdf", minimalPDF(1)), nil)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = f.svc.Create(context.Background(), adminViewer, metadata(), uploadOf("dune.pdf", []byte("plain text")), nil)
	assert.ErrorIs(t, err, ErrInvalidPDF)

	assert.Equal(t, 0, f.store.Len())
}

func TestDeleteRemovesRowAndObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "books", "pdf/x/dune.pdf", strings.NewReader("%PDF"), 4, "application/pdf"))
	require.NoError(t, f.store.Put(ctx, "covers", "cover/x/c.png", strings.NewReader("png"), 3, "image/png"))

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("DELETE FROM books").
		WithArgs(testBookID).
		WillReturnRows(sqlmock.NewRows([]string{"pdf_path", "cover_path"}).AddRow("pdf/x/dune.pdf", "cover/x/c.png"))
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.Delete(ctx, adminViewer, testBookID))
	assert.Equal(t, 0, f.store.Len())
}

func TestDeleteRollsBackWhenStorageFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "books", "pdf/x/dune.pdf", strings.NewReader("%PDF"), 4, "application/pdf"))
	f.store.FailDelete = errors.New("storage unavailable")

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("DELETE FROM books").
		WithArgs(testBookID).
		WillReturnRows(sqlmock.NewRows([]string{"pdf_path", "cover_path"}).AddRow("pdf/x/dune.pdf", ""))
	f.mock.ExpectRollback()

	err := f.svc.Delete(ctx, adminViewer, testBookID)
	require.Error(t, err)
	assert.True(t, f.store.Has("books", "pdf/x/dune.pdf"))
}

func TestDeleteCommitFailureAfterRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "books", "pdf/x/dune.pdf", strings.NewReader("%PDF"), 4, "application/pdf"))

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("DELETE FROM books").
		WithArgs(testBookID).
		WillReturnRows(sqlmock.NewRows([]string{"pdf_path", "cover_path"}).AddRow("pdf/x/dune.pdf", ""))
	f.mock.ExpectCommit().WillReturnError(errors.New("connection lost"))

	err := f.svc.Delete(ctx, adminViewer, testBookID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction")
	assert.False(t, f.store.Has("books", "pdf/x/dune.pdf"))
}

func TestDeleteMissingBook(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("DELETE FROM books").WillReturnError(sql.ErrNoRows)
	f.mock.ExpectRollback()

	assert.ErrorIs(t, f.svc.Delete(context.Background(), adminViewer, testBookID), core.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), adminViewer, "not-a-uuid"), core.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), userViewer, testBookID), core.ErrForbidden)
}

func TestReadURLByAccessStatus(t *testing.T) {
	tests := []struct {
		status access.Status
		want   error
	}{
		{access.StatusGranted, nil},
		{access.StatusExpired, ErrAccessExpired},
		{access.StatusNone, ErrAccessDenied},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newFixture(t)
			f.access.status = tc.status
			issued := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
			f.svc.now = func() time.Time { return issued }
			require.NoError(t, f.store.Put(context.Background(), "books", "pdf/x/dune.pdf", strings.NewReader("%PDF"), 4, "application/pdf"))

			f.mock.ExpectQuery("FROM books b").
				WithArgs(testBookID).
				WillReturnRows(bookRow("pdf/x/dune.pdf", ""))

			resp, err := f.svc.ReadURL(context.Background(), userViewer, testBookID)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "https://storage.test/books/pdf/x/dune.pdf?expires=3600", resp.URL)
			assert.Equal(t, issued.Add(time.Hour), resp.ExpiresAt)
			assert.Equal(t, 412, resp.TotalPages)
		})
	}
}

func TestGetUnknownBook(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("FROM books b").WithArgs(testBookID).WillReturnError(sql.ErrNoRows)

	_, err := f.svc.Get(context.Background(), testBookID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, f.access.calls)
}

func TestListSignsCovers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Put(context.Background(), "covers", "cover/x/c.png", strings.NewReader("png"), 3, "image/png"))

	f.mock.ExpectQuery("SELECT COUNT").
		WithArgs("fiction", `%dune%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectQuery(`ORDER BY b.name ASC`).
		WithArgs("fiction", `%dune%`, 12, 0).
		WillReturnRows(bookRow("pdf/x/dune.pdf", "cover/x/c.png"))

	books, total, err := f.svc.List(context.Background(), ListParams{
		Category: "fiction",
		Search:   "dune",
		Sort:     SortName,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, books, 1)
	assert.Equal(t, "https://storage.test/covers/cover/x/c.png?expires=3600", books[0].CoverURL)
	assert.Equal(t, 9.99, books[0].Price)
}

func TestUpdateMergesFields(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.mock.ExpectQuery("FROM books b").WithArgs(testBookID).WillReturnRows(bookRow("p", ""))
	f.mock.ExpectQuery("UPDATE books").
		WithArgs(testBookID, "Dune Messiah", "Frank Herbert", "Spice", nil, 412, 12.5).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	f.mock.ExpectQuery("FROM books b").WithArgs(testBookID).WillReturnRows(bookRow("p", ""))

	name := "Dune Messiah"
	price := 12.5
	empty := ""
	_, err := f.svc.Update(context.Background(), adminViewer, testBookID, UpdateBookRequest{
		Name:       &name,
		Price:      &price,
		CategoryID: &empty,
	})
	require.NoError(t, err)
}

func TestBlankNameOrAuthorIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := metadata()
	req.Name = "   "
	_, err := f.svc.Create(ctx, adminViewer, req, uploadOf("dune.pdf", minimalPDF(1)), nil)
	assert.ErrorIs(t, err, ErrBlankField)
	assert.Equal(t, 0, f.store.Len())

	author := " \t"
	_, err = f.svc.Update(ctx, adminViewer, testBookID, UpdateBookRequest{Author: &author})
	assert.ErrorIs(t, err, ErrBlankField)
}
