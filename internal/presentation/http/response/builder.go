package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/erpsync/pkg/errorbank"
)

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// WithPage records pagination metadata for list endpoints.
func (b *Builder) WithPage(page, perPage, total int) *Builder {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return b.WithMeta("page", page).
		WithMeta("per_page", perPage).
		WithMeta("total", total).
		WithMeta("pages", pages)
}

type successEnvelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type errorBody struct {
	Kind    errorbank.Kind `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool           `json:"success"`
	Error   errorBody      `json:"error"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Build finalises and emits the HTTP response. The request id assigned by the
// router middleware is echoed in meta so operators can match sync logs.
func (b *Builder) Build() error {
	if id := b.requestID(); id != "" {
		b.WithMeta("request_id", id)
	}
	if b.err == nil {
		return b.ctx.JSON(b.status, successEnvelope{Success: true, Data: b.data, Meta: b.meta})
	}

	appErr := errorbank.From(b.err)
	status := b.status
	if status < http.StatusBadRequest {
		status = appErr.StatusCode()
	}
	if b.ctx.Request().Method == http.MethodHead {
		return b.ctx.NoContent(status)
	}
	return b.ctx.JSON(status, errorEnvelope{
		Error: errorBody{Kind: appErr.Kind(), Message: appErr.Message(), Details: appErr.Details()},
		Meta:  b.meta,
	})
}

func (b *Builder) requestID() string {
	if id := b.ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return b.ctx.Request().Header.Get(echo.HeaderXRequestID)
}
