package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes returned in Response.Error.Code.
const (
	errBadRequest = "BAD_REQUEST"
	errNotFound   = "NOT_FOUND"
	errInternal   = "INTERNAL_ERROR"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, RequestID: c.GetString(ctxRequestID)})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Error:     &APIError{Code: code, Message: message},
		RequestID: c.GetString(ctxRequestID),
	})
}
