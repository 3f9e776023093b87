package echoapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
)

var errInvalidBody = core.NewAppError(core.KindInvalid, "INVALID_REQUEST", "Invalid request body.")

// bindAndValidate binds the request body into dst and validates it.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, dst interface{}) error {
	if err := ctx.Bind(dst); err != nil {
		return errInvalidBody
	}
	if err := validate.StructCtx(ctx.Request().Context(), dst); err != nil {
		return errors.Wrap(err, "validating request")
	}
	return nil
}

// bindQuery binds query parameters only, whatever the request method.
func bindQuery(ctx echo.Context, dst interface{}) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, dst); err != nil {
		return core.NewValidationError(errors.New("Invalid query parameters."))
	}
	return nil
}

// bindPagination reads ?page & ?limit; invalid values fall back to the defaults.
func bindPagination(ctx echo.Context, defLimit int) core.Pagination {
	var page, limit int
	_ = echo.QueryParamsBinder(ctx).Int("page", &page).Int("limit", &limit).BindError()
	return core.NewPagination(page, limit, defLimit)
}

// queryBool parses an optional boolean query parameter.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: name + " must be true or false"})
	}
	return &val, nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
