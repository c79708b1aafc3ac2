package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codetube/internal/errors"
)

// APIResponse is the JSON envelope for every endpoint.
type APIResponse struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
	Success    bool        `json:"success"`
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, APIResponse{
		StatusCode: status,
		Message:    message,
		Data:       data,
		Success:    status < 400,
	})
}

// respondError maps a service error onto the envelope. Internal causes are
// logged, never serialized.
func respondError(c echo.Context, err error) error {
	kind := errors.KindOf(err)
	if kind == errors.KindInternal {
		c.Logger().Error(err)
	}
	return respond(c, errors.HTTPStatus(kind), errors.MessageOf(err), nil)
}

// HTTPErrorHandler renders framework-level errors (404s, middleware
// rejections) with the same envelope the handlers use.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"

	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	} else {
		kind := errors.KindOf(err)
		status = errors.HTTPStatus(kind)
		message = errors.MessageOf(err)
	}

	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if err := respond(c, status, message, nil); err != nil {
		c.Logger().Error(err)
	}
}
