// Package response renders every API outcome in a single envelope so that a
// client never has to guess whether a call succeeded.
package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Kind      apperr.Kind `json:"kind,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func OK(c echo.Context, message string, data interface{}) error {
	return write(c, http.StatusOK, message, data)
}

func Created(c echo.Context, message string, data interface{}) error {
	return write(c, http.StatusCreated, message, data)
}

func write(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: requestID(c),
	})
}

// Error renders err with the status mapped from its kind.
func Error(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	return c.JSON(apperr.HTTPStatus(kind), Envelope{
		Success:   false,
		Message:   apperr.MessageOf(err),
		Kind:      kind,
		Retryable: apperr.IsRetryable(err),
		RequestID: requestID(c),
	})
}

// ErrorHandler returns an echo.HTTPErrorHandler that renders classified
// errors and echo's own HTTP errors in the envelope. Unclassified errors are
// logged and reported as internal.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
			_ = c.JSON(he.Code, Envelope{
				Success:   false,
				Message:   msg,
				Kind:      kindForStatus(he.Code),
				RequestID: requestID(c),
			})
			return
		}

		if apperr.KindOf(err) == apperr.KindInternal {
			logger.Error().Err(err).
				Str("request_id", requestID(c)).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}
		_ = Error(c, err)
	}
}

func kindForStatus(code int) apperr.Kind {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return apperr.KindValidation
	case http.StatusUnauthorized:
		return apperr.KindAuthenticationRequired
	case http.StatusForbidden:
		return apperr.KindAuthorizationDenied
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	}
	if code >= 500 {
		return apperr.KindInternal
	}
	return ""
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
