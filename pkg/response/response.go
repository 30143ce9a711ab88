package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/parley-im/parley/pkg/errcode"
)

// Response represents a standard API response
type Response struct {
	Code   int         `json:"code"`
	Status string      `json:"status,omitempty"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

// Success sends a success response
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Error sends an error response
func Error(ctx context.Context, c *app.RequestContext, err error) {
	e := errcode.From(err)
	c.JSON(httpStatus(e), Response{
		Code:   e.Code,
		Status: e.Status,
		Msg:    e.Msg,
	})
}

// ErrorWithCode sends an error response with a specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(httpStatus(e), Response{
		Code:   e.Code,
		Status: e.Status,
		Msg:    e.Msg,
	})
}

// httpStatus maps a wire status to the HTTP status code
func httpStatus(e *errcode.Error) int {
	switch e.Status {
	case errcode.StatusAuthRequired:
		return http.StatusUnauthorized
	case errcode.StatusPermissionDenied:
		return http.StatusForbidden
	case errcode.StatusConversationNotFound, errcode.StatusMessageNotFound:
		return http.StatusNotFound
	case errcode.StatusValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
