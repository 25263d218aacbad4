package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess        = 0
	CodeInternalServer = 5000
)

// Response is the envelope every endpoint replies with.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// HandlerFunc is the signature of a read-only endpoint.
type HandlerFunc[R any] func(context.Context) (R, error)

// Wrap converts a typed handler to a Gin handler.
func Wrap[R any](h HandlerFunc[R]) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, Response{Code: CodeInternalServer, Message: err.Error()})
			return
		}
		c.JSON(http.StatusOK, Response{Code: CodeSuccess, Message: "success", Data: res})
	}
}
