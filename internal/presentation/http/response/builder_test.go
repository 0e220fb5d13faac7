package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/erpsync/pkg/errorbank"
)

type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta"`
	Error   struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func serve(t *testing.T, method string, build func(c echo.Context) error) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/sync/mappings", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	require.NoError(t, build(e.NewContext(req, rec)))

	var body envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestBuilder_SuccessWithPage(t *testing.T) {
	rec, body := serve(t, http.MethodGet, func(c echo.Context) error {
		return New(c).WithData([]int{1, 2}).WithPage(2, 20, 41).Build()
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.EqualValues(t, 2, body.Meta["page"])
	assert.EqualValues(t, 20, body.Meta["per_page"])
	assert.EqualValues(t, 41, body.Meta["total"])
	assert.EqualValues(t, 3, body.Meta["pages"])
	assert.Equal(t, "req-1", body.Meta["request_id"])
}

func TestBuilder_AppError(t *testing.T) {
	rec, body := serve(t, http.MethodPost, func(c echo.Context) error {
		return New(c).WithError(errorbank.Conflict("erp sync is disabled", errorbank.WithDetail("order_id", 42))).Build()
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "conflict", body.Error.Kind)
	assert.Equal(t, "erp sync is disabled", body.Error.Message)
	assert.EqualValues(t, 42, body.Error.Details["order_id"])
}

func TestBuilder_UnexpectedErrorIsInternal(t *testing.T) {
	rec, body := serve(t, http.MethodGet, func(c echo.Context) error {
		return New(c).WithError(errors.New("connection reset")).Build()
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body.Error.Message)
}

func TestBuilder_ExplicitErrorStatusWins(t *testing.T) {
	rec, _ := serve(t, http.MethodGet, func(c echo.Context) error {
		return New(c).WithStatus(http.StatusServiceUnavailable).WithError(errors.New("db down")).Build()
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBuilder_HeadErrorHasNoBody(t *testing.T) {
	rec, _ := serve(t, http.MethodHead, func(c echo.Context) error {
		return New(c).WithError(errorbank.NotFound("mapping not found")).Build()
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
