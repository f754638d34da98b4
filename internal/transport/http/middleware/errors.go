package middleware

import (
	"github.com/gin-gonic/gin"
)

// Error codes carried in the error envelope.
const (
	CodeAuth               = "AUTH_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorBody describes a failed request.
type ErrorBody struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the envelope every error response uses.
type ErrorResponse struct {
	Error   ErrorBody `json:"error"`
	TraceID string    `json:"trace_id,omitempty"`
}

// NewErrorResponse builds an envelope stamped with the request trace id.
func NewErrorResponse(c *gin.Context, code, message string, details map[string]any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Message: message,
			Code:    code,
			Details: details,
		},
		TraceID: GetTraceID(c),
	}
}

// AbortWithError writes the envelope and stops the handler chain.
func AbortWithError(c *gin.Context, status int, code, message string, details map[string]any) {
	c.AbortWithStatusJSON(status, NewErrorResponse(c, code, message, details))
}
