// AngelaMos | 2026
// handler.go

package book

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/middleware"
)

const (
	multipartMemory = 32 << 20
	multipartSlack  = 1 << 20
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{bookID}", h.Get)

		r.With(authenticator).Get("/{bookID}/read", h.Read)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/books", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.Stats)
		r.Post("/", h.Create)
		r.Put("/{bookID}", h.Update)
		r.Delete("/{bookID}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListParams{
		Page:     core.QueryInt(r, "page", 1),
		PageSize: core.QueryInt(r, "page_size", defaultPageSize),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
	}
	params.Normalize()

	books, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, books, params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetResponse(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, b)
}

func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ReadURL(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "bookID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

// Create accepts multipart/form-data with a JSON "metadata" field, a "pdf"
// file and an optional "cover" image.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	limits := h.service.limits
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBookSize+limits.MaxCoverSize+multipartSlack)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, ErrFileTooLarge)
			return
		}
		core.BadRequest(w, "invalid multipart body")
		return
	}
	defer func() {
		//nolint:errcheck // temp file cleanup
		_ = r.MultipartForm.RemoveAll()
	}()

	var req CreateBookRequest
	if err := json.NewDecoder(strings.NewReader(r.FormValue("metadata"))).Decode(&req); err != nil {
		core.BadRequest(w, "metadata must be a JSON object")
		return
	}
	req.Normalize()

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	pdfFile, pdfHeader, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, ErrMissingFile)
		return
	}
	defer pdfFile.Close()

	var cover *Upload
	coverFile, coverHeader, err := r.FormFile("cover")
	switch {
	case err == nil:
		defer coverFile.Close()
		cover = uploadFrom(coverFile, coverHeader)
	case !errors.Is(err, http.ErrMissingFile):
		core.BadRequest(w, "invalid cover part")
		return
	}

	b, err := h.service.Create(
		r.Context(),
		middleware.GetViewer(r.Context()),
		req,
		*uploadFrom(pdfFile, pdfHeader),
		cover,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToBookResponse(b, ""))
}

func uploadFrom(f multipart.File, header *multipart.FileHeader) *Upload {
	return &Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  f,
	}
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	req.Normalize()

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	b, err := h.service.Update(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "bookID"),
		req,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToBookResponse(b, ""))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "bookID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, stats)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "book")
	case errors.Is(err, ErrAccessExpired):
		core.JSONError(w, core.NewAppError(
			err, err.Error(), http.StatusForbidden, "ACCESS_EXPIRED",
		))
	case errors.Is(err, ErrAccessDenied):
		core.JSONError(w, core.NewAppError(
			err, err.Error(), http.StatusForbidden, "ACCESS_DENIED",
		))
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "admin access required")
	case errors.Is(err, ErrFileTooLarge):
		core.JSONError(w, core.NewAppError(
			err, err.Error(), http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
		))
	case errors.Is(err, ErrInvalidPDF), errors.Is(err, ErrInvalidCover),
		errors.Is(err, ErrMissingFile):
		core.JSONError(w, core.NewAppError(
			err, err.Error(), http.StatusUnprocessableEntity, "INVALID_FILE",
		))
	case errors.Is(err, ErrUnknownCategory):
		core.BadRequest(w, ErrUnknownCategory.Error())
	case errors.Is(err, ErrBlankField):
		core.BadRequest(w, ErrBlankField.Error())
	default:
		core.InternalServerError(w, err)
	}
}
