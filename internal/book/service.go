// AngelaMos | 2026
// service.go

package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/bookshelf/internal/access"
	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/storage"
)

var (
	ErrAccessExpired = errors.New("access to this book has expired")
	ErrAccessDenied  = errors.New("no access to this book")
	ErrBlankField    = errors.New("name and author must not be blank")
)

// AccessChecker resolves whether a viewer may open a book.
type AccessChecker interface {
	Check(
		ctx context.Context,
		viewer core.Viewer,
		bookID string,
	) (access.Status, error)
}

type Limits struct {
	MaxBookSize  int64
	MaxCoverSize int64
}

type Service struct {
	db      *sqlx.DB
	repo    Repository
	store   storage.ObjectStore
	buckets storage.Buckets
	access  AccessChecker
	limits  Limits
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	db *sqlx.DB,
	store storage.ObjectStore,
	buckets storage.Buckets,
	accessChecker AccessChecker,
	limits Limits,
	logger *slog.Logger,
) *Service {
	if limits.MaxBookSize <= 0 || limits.MaxBookSize > MaxPDFSize {
		limits.MaxBookSize = MaxPDFSize
	}
	if limits.MaxCoverSize <= 0 {
		limits.MaxCoverSize = 5 << 20
	}

	return &Service{
		db:      db,
		repo:    NewRepository(db),
		store:   store,
		buckets: buckets,
		access:  accessChecker,
		limits:  limits,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]BookResponse, int, error) {
	books, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	out := make([]BookResponse, 0, len(books))
	for i := range books {
		out = append(out, ToBookResponse(&books[i], s.coverURL(ctx, &books[i])))
	}

	return out, total, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Book, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get book: %w", core.ErrNotFound)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetResponse(ctx context.Context, id string) (*BookResponse, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := ToBookResponse(b, s.coverURL(ctx, b))
	return &resp, nil
}

func (s *Service) coverURL(ctx context.Context, b *Book) string {
	return s.SignCover(ctx, b.CoverPath)
}

// SignCover presigns a cover key for display. A signing failure only hides
// the cover.
func (s *Service) SignCover(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}

	url, err := s.store.PresignGet(ctx, s.buckets.Covers, key, storage.SignedURLExpiry)
	if err != nil {
		s.logger.Warn("sign cover url failed", "key", key, "error", err)
		return ""
	}
	return url
}

// ReadURL hands out a one-hour link to the book's PDF once the viewer's
// access has been confirmed.
func (s *Service) ReadURL(
	ctx context.Context,
	viewer core.Viewer,
	id string,
) (*ReadResponse, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	status, err := s.access.Check(ctx, viewer, b.ID)
	if err != nil {
		return nil, fmt.Errorf("read book: %w", err)
	}

	switch status {
	case access.StatusGranted:
	case access.StatusExpired:
		return nil, ErrAccessExpired
	default:
		return nil, ErrAccessDenied
	}

	issuedAt := s.now()
	url, err := s.store.PresignGet(ctx, s.buckets.Books, b.PDFPath, storage.SignedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("sign book url: %w", err)
	}

	return &ReadResponse{
		BookID:     b.ID,
		URL:        url,
		ExpiresAt:  issuedAt.Add(storage.SignedURLExpiry),
		TotalPages: b.TotalPages,
	}, nil
}

// Create uploads the PDF, then the cover, then inserts the row. Objects
// already uploaded are removed again if a later step fails.
func (s *Service) Create(
	ctx context.Context,
	viewer core.Viewer,
	req CreateBookRequest,
	pdfFile Upload,
	cover *Upload,
) (b *Book, err error) {
	if !viewer.IsAdmin() {
		return nil, fmt.Errorf("create book: %w", core.ErrForbidden)
	}

	ctx, span := core.StartSpan(ctx, "book.create")
	defer func() { core.EndSpan(span, err) }()

	req.Normalize()
	if req.Name == "" || req.Author == "" {
		return nil, fmt.Errorf("create book: %w", ErrBlankField)
	}

	if err := inspectPDF(pdfFile, s.limits.MaxBookSize); err != nil {
		return nil, err
	}

	totalPages := 0
	if req.TotalPages != nil {
		totalPages = *req.TotalPages
	} else {
		totalPages, err = countPages(pdfFile)
		if err != nil {
			return nil, err
		}
	}

	coverType := ""
	if cover != nil {
		coverType, err = inspectCover(*cover, s.limits.MaxCoverSize)
		if err != nil {
			return nil, err
		}
	}

	createdBy := viewer.UserID
	b = &Book{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Author:      req.Author,
		Description: req.Description,
		CategoryID:  normalizeCategory(req.CategoryID),
		SizeBytes:   pdfFile.Size,
		TotalPages:  totalPages,
		Price:       req.Price,
		CreatedBy:   &createdBy,
	}
	span.SetAttributes(attribute.String("book.id", b.ID))

	b.PDFPath = storage.ObjectKey("pdf", b.ID, pdfFile.Filename)
	if err := s.put(ctx, s.buckets.Books, b.PDFPath, pdfFile, pdfMIME); err != nil {
		return nil, err
	}
	core.AddSpanEvent(ctx, "pdf.uploaded",
		attribute.String("key", b.PDFPath),
		attribute.Int64("size", pdfFile.Size),
	)

	if cover != nil {
		b.CoverPath = storage.ObjectKey("cover", b.ID, cover.Filename)
		if err := s.put(ctx, s.buckets.Covers, b.CoverPath, *cover, coverType); err != nil {
			s.compensate(ctx, b.ID, storedObject{s.buckets.Books, b.PDFPath})
			return nil, err
		}
		core.AddSpanEvent(ctx, "cover.uploaded", attribute.String("key", b.CoverPath))
	}

	if err := s.repo.Create(ctx, b); err != nil {
		uploaded := []storedObject{{s.buckets.Books, b.PDFPath}}
		if b.HasCover() {
			uploaded = append(uploaded, storedObject{s.buckets.Covers, b.CoverPath})
		}
		s.compensate(ctx, b.ID, uploaded...)
		return nil, err
	}
	core.AddSpanEvent(ctx, "row.inserted")

	s.logger.Info("book created",
		"book_id", b.ID,
		"size_bytes", b.SizeBytes,
		"total_pages", b.TotalPages,
		"created_by", createdBy,
	)

	return b, nil
}

func (s *Service) put(
	ctx context.Context,
	bucket, key string,
	u Upload,
	contentType string,
) error {
	if err := rewind(u.Content); err != nil {
		return err
	}
	if err := s.store.Put(ctx, bucket, key, u.Content, u.Size, contentType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

type storedObject struct {
	bucket string
	key    string
}

// compensate removes objects written for a create that did not complete.
// It runs detached from the request so a cancelled client still gets cleaned
// up after.
func (s *Service) compensate(ctx context.Context, bookID string, objects ...storedObject) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	for _, obj := range objects {
		if err := s.store.Delete(cleanupCtx, obj.bucket, obj.key); err != nil &&
			!errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Error("orphaned object after failed create",
				"book_id", bookID,
				"bucket", obj.bucket,
				"key", obj.key,
				"error", err,
			)
			continue
		}
		core.AddSpanEvent(ctx, "object.compensated", attribute.String("key", obj.key))
	}
}

func (s *Service) Update(
	ctx context.Context,
	viewer core.Viewer,
	id string,
	req UpdateBookRequest,
) (*Book, error) {
	if !viewer.IsAdmin() {
		return nil, fmt.Errorf("update book: %w", core.ErrForbidden)
	}

	req.Normalize()
	if req.blank() {
		return nil, fmt.Errorf("update book: %w", ErrBlankField)
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Author != nil {
		b.Author = *req.Author
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if req.CategoryID != nil {
		b.CategoryID = normalizeCategory(req.CategoryID)
	}
	if req.Price != nil {
		b.Price = *req.Price
	}
	if req.TotalPages != nil {
		b.TotalPages = *req.TotalPages
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, b.ID)
}

// Delete removes the row and its stored objects in one transaction: the
// row is deleted first, the objects are removed, and only then is the
// deletion committed. A storage failure rolls the row back. A failed
// commit after the objects are gone leaves the row pointing at nothing;
// that case is logged with the paths.
func (s *Service) Delete(
	ctx context.Context,
	viewer core.Viewer,
	id string,
) (err error) {
	if !viewer.IsAdmin() {
		return fmt.Errorf("delete book: %w", core.ErrForbidden)
	}
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return fmt.Errorf("delete book: %w", core.ErrNotFound)
	}

	ctx, span := core.StartSpan(ctx, "book.delete", attribute.String("book.id", id))
	defer func() { core.EndSpan(span, err) }()

	var removed *StoredObjects
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		objects, err := NewRepository(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		core.AddSpanEvent(ctx, "row.deleted")

		if objects.CoverPath != "" {
			if err := s.remove(ctx, s.buckets.Covers, objects.CoverPath); err != nil {
				return err
			}
		}
		if objects.PDFPath != "" {
			if err := s.remove(ctx, s.buckets.Books, objects.PDFPath); err != nil {
				return err
			}
		}

		removed = objects
		return nil
	})
	if err != nil {
		if removed != nil {
			s.logger.Error("book row kept after its objects were removed",
				"book_id", id,
				"pdf_path", removed.PDFPath,
				"cover_path", removed.CoverPath,
				"error", err,
			)
		}
		return err
	}

	s.logger.Info("book deleted", "book_id", id, "deleted_by", viewer.UserID)
	return nil
}

func (s *Service) remove(ctx context.Context, bucket, key string) error {
	err := s.store.Delete(ctx, bucket, key)
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	core.AddSpanEvent(ctx, "object.removed", attribute.String("key", key))
	return nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func normalizeCategory(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.ToLower(strings.TrimSpace(*id))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
