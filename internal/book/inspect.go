// AngelaMos | 2026
// inspect.go

package book

import (
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const (
	pdfMIME = "application/pdf"

	// MaxPDFSize caps a single uploaded book file.
	MaxPDFSize int64 = 100 << 20
)

var (
	ErrInvalidPDF   = errors.New("file is not a readable PDF")
	ErrInvalidCover = errors.New("cover must be a JPEG, PNG or WebP image")
	ErrFileTooLarge = errors.New("file exceeds the upload limit")
	ErrMissingFile  = errors.New("pdf file is required")
)

var coverMIMEs = []string{"image/jpeg", "image/png", "image/webp"}

// File is an uploaded part. multipart.File satisfies it.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// Upload is a file handed to the service together with its metadata.
type Upload struct {
	Filename string
	Size     int64
	Content  File
}

// sniff detects the content type from the leading bytes without moving the
// read offset.
func sniff(f File, size int64) (*mimetype.MIME, error) {
	mime, err := mimetype.DetectReader(io.NewSectionReader(f, 0, size))
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	return mime, nil
}

func inspectPDF(u Upload, maxSize int64) error {
	if u.Content == nil || u.Size == 0 {
		return ErrMissingFile
	}
	if u.Size > maxSize {
		return fmt.Errorf("pdf is %d bytes: %w", u.Size, ErrFileTooLarge)
	}

	mime, err := sniff(u.Content, u.Size)
	if err != nil {
		return err
	}
	if !mime.Is(pdfMIME) {
		return fmt.Errorf("detected %s: %w", mime.String(), ErrInvalidPDF)
	}

	return nil
}

// countPages reads the page tree of an already sniffed PDF. The parser can
// panic on malformed cross-reference tables, so that is reported as
// ErrInvalidPDF too.
func countPages(u Upload) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("parse pdf: %v: %w", r, ErrInvalidPDF)
		}
	}()

	reader, err := pdf.NewReader(u.Content, u.Size)
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %v: %w", err, ErrInvalidPDF)
	}

	pages = reader.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("pdf has no pages: %w", ErrInvalidPDF)
	}

	return pages, nil
}

func inspectCover(u Upload, maxSize int64) (string, error) {
	if u.Size > maxSize {
		return "", fmt.Errorf("cover is %d bytes: %w", u.Size, ErrFileTooLarge)
	}

	mime, err := sniff(u.Content, u.Size)
	if err != nil {
		return "", err
	}

	for _, allowed := range coverMIMEs {
		if mime.Is(allowed) {
			return allowed, nil
		}
	}

	return "", fmt.Errorf("detected %s: %w", mime.String(), ErrInvalidCover)
}

// rewind puts the read offset back to the start before an upload.
func rewind(f File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}
	return nil
}
