// AngelaMos | 2026
// inspect_test.go

package book

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF renders a valid PDF with the given number of blank pages and
// an exact cross-reference table.
func minimalPDF(pages int) []byte {
	kids := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", i+3))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
	}
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func uploadOf(name string, data []byte) Upload {
	return Upload{Filename: name, Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func TestInspectPDFAcceptsPDF(t *testing.T) {
	u := uploadOf("dune.pdf", minimalPDF(3))

	require.NoError(t, inspectPDF(u, MaxPDFSize))

	pages, err := countPages(u)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestInspectPDFRejects(t *testing.T) {
	tests := []struct {
		name string
		u    Upload
		max  int64
		want error
	}{
		{"empty", Upload{}, MaxPDFSize, ErrMissingFile},
		{"not a pdf", uploadOf("notes.pdf", []byte("just some plain text, clearly not a pdf")), MaxPDFSize, ErrInvalidPDF},
		{"png renamed", uploadOf("cover.pdf", pngHeader), MaxPDFSize, ErrInvalidPDF},
		{"over limit", uploadOf("big.pdf", minimalPDF(1)), 10, ErrFileTooLarge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, inspectPDF(tc.u, tc.max), tc.want)
		})
	}
}

func TestCountPagesOnTruncatedPDF(t *testing.T) {
	data := minimalPDF(2)
	truncated := data[:len(data)/2]

	_, err := countPages(uploadOf("broken.pdf", truncated))
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

func TestInspectCover(t *testing.T) {
	mime, err := inspectCover(uploadOf("cover.png", pngHeader), 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = inspectCover(uploadOf("cover.pdf", minimalPDF(1)), 1<<20)
	assert.ErrorIs(t, err, ErrInvalidCover)

	_, err = inspectCover(uploadOf("cover.png", pngHeader), 4)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
