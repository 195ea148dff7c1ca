package middleware

import (
	"log/slog"
	"net/http"

	"healthbridge/config"
	"healthbridge/internal/delivery/api/response"
	deliverycontext "healthbridge/internal/delivery/context"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/errors"

	"github.com/labstack/echo/v4"
)

// ErrorMiddleware handles errors in the HTTP pipeline
type ErrorMiddleware struct {
	logger     *slog.Logger
	production bool
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(logger *slog.Logger, cfg *config.Config) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger:     logger,
		production: cfg.IsProduction(),
	}
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPCode() >= http.StatusInternalServerError {
			m.logUnhandled(c, err)
			_ = response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), m.internalDetails(err))

			return
		}

		_ = response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), clientDetails(appErr))

		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}

		_ = response.Error(c, httpErr.Code, httpErrorCode(httpErr.Code), message, nil)

		return
	}

	m.logUnhandled(c, err)
	_ = response.Error(c, http.StatusInternalServerError, domainerrors.ErrInternalError.ErrorCode(),
		"Internal server error, please try again later", m.internalDetails(err))
}

func (m *ErrorMiddleware) logUnhandled(c echo.Context, err error) {
	deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger).Error("Unhandled error",
		slog.Any("error", err),
		slog.String("path", c.Request().URL.Path),
		slog.String("method", c.Request().Method),
	)
}

// clientDetails returns the details of a 4xx error. Authentication and
// authorization failures never carry any.
func clientDetails(appErr domainerrors.AppError) any {
	switch appErr.HTTPCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil
	}
	if d := appErr.Details(); d != "" {
		return d
	}

	return nil
}

// internalDetails exposes the error chain outside production only.
func (m *ErrorMiddleware) internalDetails(err error) any {
	if m.production {
		return nil
	}

	return err.Error()
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return domainerrors.ErrNotFound.ErrorCode()
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	case http.StatusBadRequest:
		return "INVALID_INPUT"
	default:
		return "HTTP_ERROR"
	}
}

// statusOf predicts the status HandleHTTPError will write for err.
func statusOf(err error) int {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPCode()
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return http.StatusInternalServerError
}
