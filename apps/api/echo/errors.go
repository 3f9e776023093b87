package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

const (
	codeValidation = "VALIDATION_ERROR"
	codeInternal   = "INTERNAL_ERROR"
)

var (
	errMissingToken     = core.NewAppError(core.KindUnauthorized, "UNAUTHORIZED", "Authentication required.")
	errInvalidAuthToken = core.NewAppError(core.KindUnauthorized, "UNAUTHORIZED", "Invalid or expired token.")
	errTooManyRequests  = core.NewAppError(core.KindTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests, please try again later.")
)

var kindStatus = map[core.ErrorKind]int{
	core.KindInternal:        http.StatusInternalServerError,
	core.KindInvalid:         http.StatusBadRequest,
	core.KindUnauthorized:    http.StatusUnauthorized,
	core.KindForbidden:       http.StatusForbidden,
	core.KindNotFound:        http.StatusNotFound,
	core.KindConflict:        http.StatusConflict,
	core.KindLocked:          http.StatusLocked,
	core.KindTooManyRequests: http.StatusTooManyRequests,
}

// statusCode returns the HTTP status of an AppError kind.
func statusCode(kind core.ErrorKind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// errorStatus returns the status newAppHTTPErrorHandler will answer err with.
func errorStatus(err error) int {
	if appErr, ok := core.AsAppError(err); ok {
		return statusCode(appErr.Kind)
	}
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		return origErr.Code
	case validator.ValidationErrors, *core.ValidationError:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// httpErrorCode turns an HTTP status into an error code, e.g. 404 -> NOT_FOUND.
func httpErrorCode(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			payload echo.Map
		)

		if appErr, ok := core.AsAppError(err); ok {
			code = statusCode(appErr.Kind)
			payload = echo.Map{"error": appErr.Code, "code": appErr.Code, "message": appErr.Message}
			for k, v := range appErr.Data {
				payload[k] = v
			}
			if code >= http.StatusInternalServerError {
				logger.Error(appErr.Code, errors.Wrap(err, appErr.Message), contextUser(ctx))
			}
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				payload = echo.Map{"error": httpErrorCode(code), "code": httpErrorCode(code), "message": fmt.Sprint(origErr.Message)}
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				payload = validationPayload(fldErrs)
			case *core.ValidationError:
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				code = http.StatusBadRequest
				payload = validationPayload(fldErrs)
				if len(fldErrs) == 0 {
					payload["message"] = origErr.Error()
				}
			default: // any other error is a server error
				code = http.StatusInternalServerError
				payload = echo.Map{
					"error":     codeInternal,
					"message":   "An internal server error occurred",
					"requestId": ctx.Response().Header().Get(echo.HeaderXRequestID),
				}
				logger.Error(http.StatusText(code), errors.Wrap(err, ctx.Request().Method+" "+ctx.Path()), contextUser(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			payload["debug"] = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, payload)
			}
			if err != nil {
				logger.Error("sending error response", err)
			}
		}
	}
}

func validationPayload(fields map[string]string) echo.Map {
	return echo.Map{
		"error":   codeValidation,
		"code":    codeValidation,
		"message": "Invalid data provided",
		"fields":  fields,
	}
}

// contextUser returns the authenticated user for error reports, if any.
func contextUser(ctx echo.Context) user.User {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr
	}
	if claims, err := getContextClaims(ctx); err == nil {
		return user.User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}
	}
	return user.User{}
}
