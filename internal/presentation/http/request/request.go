// Package request binds and validates inbound HTTP payloads.
package request

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/erpsync/pkg/errorbank"
)

// Paging defaults for list endpoints.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Validator adapts go-playground/validator to echo.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a Validator reporting fields by their json names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// Bind decodes the request body into dst and validates it. Failures are
// returned as bad request errors listing the offending fields.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make(map[string]any, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			return errorbank.BadRequest("validation failed", errorbank.WithDetail("fields", fields), errorbank.WithCause(err))
		}
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return nil
}

// PathID parses a positive integer path parameter.
func PathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, c.Param(name)))
	}
	return id, nil
}

// Page reads page and per_page query parameters and returns limit and offset.
func Page(c echo.Context) (page, perPage int, err error) {
	page, perPage = 1, DefaultPerPage
	if raw := c.QueryParam("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil || page < 1 {
			return 0, 0, errorbank.BadRequest("invalid page", errorbank.WithDetail("page", raw))
		}
	}
	if raw := c.QueryParam("per_page"); raw != "" {
		if perPage, err = strconv.Atoi(raw); err != nil || perPage < 1 {
			return 0, 0, errorbank.BadRequest("invalid per_page", errorbank.WithDetail("per_page", raw))
		}
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage, nil
}
