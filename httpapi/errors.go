package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weavehub/weave/apperr"
)

// errorKindStatus maps the closed apperr.Kind enum to an HTTP status code in
// this one place, mirroring the teacher's convention of a single boundary
// translation instead of per-handler status picking.
var errorKindStatus = map[apperr.Kind]int{
	apperr.Unauthorized:    http.StatusUnauthorized,
	apperr.Forbidden:       http.StatusForbidden,
	apperr.NotFound:        http.StatusNotFound,
	apperr.Conflict:        http.StatusConflict,
	apperr.InvalidInput:    http.StatusBadRequest,
	apperr.LastOwner:       http.StatusConflict,
	apperr.NotPending:      http.StatusConflict,
	apperr.Timeout:         http.StatusGatewayTimeout,
	apperr.UpstreamFailure: http.StatusBadGateway,
	apperr.Internal:        http.StatusInternalServerError,
}

// writeErr translates a service-layer error into the JSON error envelope.
// Errors that never passed through apperr are treated as internal, same as
// apperr.KindOf's default.
func writeErr(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	status, ok := errorKindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		if logger := loggerFromContext(c); logger != nil {
			logger.WithError(err).Error("request failed")
		}
	}
	return c.JSON(status, echo.Map{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

// HTTPErrorHandler is registered as the Echo instance's global error handler
// so handlers can simply `return err` and have apperr kinds translated
// consistently, including errors surfaced by middleware (echo.HTTPError).
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if he, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(he.Code, echo.Map{"error": he.Message})
		return
	}
	_ = writeErr(c, err)
}
