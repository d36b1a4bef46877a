// AngelaMos | 2026
// handler.go

package product

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/storage"
)

const maxImportSize = 10 << 20

// FormImageReader extracts an uploaded image from a multipart request.
type FormImageReader interface {
	FormImage(w http.ResponseWriter, r *http.Request, field string) (io.ReadCloser, error)
}

type Handler struct {
	service   *Service
	uploads   FormImageReader
	validator *validator.Validate
}

func NewHandler(service *Service, uploads FormImageReader) *Handler {
	return &Handler{
		service:   service,
		uploads:   uploads,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the public catalog. Nested registers extra routes
// under /products/{productID}.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	cache func(http.Handler) http.Handler,
	nested ...func(r chi.Router),
) {
	r.Route("/products", func(r chi.Router) {
		r.With(cache).Get("/", h.List)

		r.Route("/{productID}", func(r chi.Router) {
			r.With(cache).Get("/", h.Get)
			for _, fn := range nested {
				fn(r)
			}
		})
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/products", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.AdminList)
		r.Post("/", h.Create)
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Get("/{productID}", h.AdminGet)
		r.Put("/{productID}", h.Update)
		r.Delete("/{productID}", h.Delete)
		r.Post("/{productID}/image", h.UploadImage)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	params, err := parseListParams(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}
	params.IncludeInactive = includeInactive
	params.Normalize()

	products, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToProductResponseList(products), params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, false)
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, true)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	if !core.ValidID(w, chi.URLParam(r, "productID"), "product") {
		return
	}

	p, err := h.service.Get(r.Context(), chi.URLParam(r, "productID"), includeInactive)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProductResponse(p))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToProductResponse(p))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "productID"), "product") {
		return
	}

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "productID"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProductResponse(p))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "productID"), "product") {
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "productID")); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "productID"), "product") {
		return
	}

	file, err := h.uploads.FormImage(w, r, "image")
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	p, err := h.service.SetImage(r.Context(), chi.URLParam(r, "productID"), file)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProductResponse(p))
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf); err != nil {
		core.InternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=products.xlsx")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort response write
	_, _ = buf.WriteTo(w)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize+(1<<20))
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		core.BadRequest(w, "workbook upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		core.BadRequest(w, "workbook file is required")
		return
	}
	defer file.Close()

	result, err := h.service.Import(r.Context(), file, header.Size)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, result)
}

func parseListParams(r *http.Request) (ListProductsParams, error) {
	q := r.URL.Query()

	params := ListProductsParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 24),
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
	}

	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			return params, errors.New("invalid featured")
		}
		params.Featured = &featured
	}

	if v := q.Get("min_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return params, errors.New("invalid min_price")
		}
		params.MinPrice = &d
	}

	if v := q.Get("max_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return params, errors.New("invalid max_price")
		}
		params.MaxPrice = &d
	}

	return params, nil
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "product")
	case errors.Is(err, core.ErrConflict):
		core.Conflict(w, "product has orders; deactivate it instead")
	case errors.Is(err, storage.ErrTooLarge):
		core.JSONError(w, core.NewAppError(err, "image is too large",
			http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"))
	case errors.Is(err, storage.ErrUnsupportedType):
		core.BadRequest(w, "image must be jpeg, png, gif or webp")
	case errors.Is(err, core.ErrInvalidInput):
		core.JSONError(w, core.ValidationError(err.Error()))
	default:
		core.InternalServerError(w, err)
	}
}
