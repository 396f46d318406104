package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/service"
)

// respond writes the success envelope {success, message, ...payload}.
func respond(c echo.Context, status int, message string, payload echo.Map) error {
	body := echo.Map{"success": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(status, body)
}

// statusFor maps an error to its HTTP status and client-facing message.
// Unknown errors become 500 with a generic message.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	}

	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrSamePassword),
		errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrUnverified),
		errors.Is(err, service.ErrAccountDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrAlreadyClaimed),
		errors.Is(err, service.ErrAlreadyClosed):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrMailDelivery):
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// ErrorHandler renders every error returned by a handler, or raised by
// Echo itself, as the standard {success: false, message, error} envelope.
// 5xx errors are logged with the request id.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		body := echo.Map{"success": false, "message": msg, "error": http.StatusText(status)}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error().Err(err).Msg("writing error response failed")
		}
	}
}

func badRequest(msg string) error { return echo.NewHTTPError(http.StatusBadRequest, msg) }
