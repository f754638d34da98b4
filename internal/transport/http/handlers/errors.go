package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status, envelope code and message.
type ErrorCase struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// commonCases apply to every endpoint after its own cases.
var commonCases = []ErrorCase{
	{Err: usecase.ErrInvalidSession, Status: http.StatusUnauthorized, Code: middleware.CodeAuth, Message: "Invalid session"},
	{Err: usecase.ErrStorageUnavailable, Status: http.StatusServiceUnavailable, Code: middleware.CodeServiceUnavailable, Message: "Service temporarily unavailable"},
}

// RespondWithMappedError resolves err against cases, then rate limit and validation
// errors, then the common cases, falling back to a 500 with fallbackMessage.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Code, cs.Message))
			return
		}
	}

	var rateErr *usecase.RateLimitExceededError
	if errors.As(err, &rateErr) {
		respondRateLimitExceeded(c, rateErr)
		return
	}

	var validation *usecase.ValidationError
	if errors.As(err, &validation) {
		details := map[string]any{}
		if validation.Field != "" {
			details["field"] = validation.Field
		}
		c.JSON(http.StatusBadRequest, middleware.NewErrorResponse(c, middleware.CodeValidation, validation.Message, details))
		return
	}

	for _, cs := range commonCases {
		if errors.Is(err, cs.Err) {
			_ = c.Error(err)
			c.JSON(cs.Status, NewErrorResponse(c, cs.Code, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, middleware.CodeInternal, fallbackMessage))
}

func respondRateLimitExceeded(c *gin.Context, rateErr *usecase.RateLimitExceededError) {
	middleware.SetRateLimitHeaders(c, port.RateLimitDecision{
		Allowed:    false,
		Limit:      rateErr.Limit,
		RetryAfter: rateErr.RetryAfter,
		ResetAt:    time.Now().Add(rateErr.RetryAfter),
	})
	middleware.AbortRateLimited(c, rateErr.RetryAfter)
}

func respondInvalidPayload(c *gin.Context, err error) {
	details := map[string]any{}
	if err != nil {
		details["reason"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, middleware.NewErrorResponse(c, middleware.CodeValidation, "Invalid request payload", details))
}
