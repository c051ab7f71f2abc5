package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/logging"
	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

// statusFor maps a Coordinator error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrCollision), errors.Is(err, workspace.ErrVectorNotReady):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail converts a Coordinator error into an echo.HTTPError. Internal errors
// are logged and reported without detail, except for the failing store.
func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		return echo.NewHTTPError(status, err.Error()).SetInternal(err)
	}

	s.logger.Error(c.Request().Context(), "request failed",
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	msg := "internal error"
	var upstream *workspace.UpstreamError
	if errors.As(err, &upstream) {
		msg = upstream.Store + " store unavailable"
	}
	return echo.NewHTTPError(status, msg).SetInternal(err)
}

// errorHandler renders every error as an ErrorResponse.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		}

		resp := ErrorResponse{
			Error:     msg,
			RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, resp)
		}
		if writeErr != nil {
			logger.Warn(c.Request().Context(), "writing error response failed", zap.Error(writeErr))
		}
	}
}
