package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	posauth "github.com/vndocker/pos-AI-community"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string       `json:"detail"`
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldError describes one failed binding rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// statusOf maps sentinel errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, posauth.ErrUserNotFound),
		errors.Is(err, posauth.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, posauth.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, posauth.ErrRunAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes err with its mapped status.
func (a *API) abortWithError(c *gin.Context, err error) {
	status := statusOf(err)
	detail := err.Error()
	switch status {
	case http.StatusNotFound:
		if errors.Is(err, posauth.ErrUserNotFound) {
			detail = "User not found"
		}
	case http.StatusTooManyRequests:
		detail = "Too many requests, try again later"
	case http.StatusInternalServerError:
		a.logger.Error("request failed", "path", c.FullPath(), "error", err)
		detail = "Workflow error: " + detail
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Detail: detail})
}

// abortWithBindError answers a request whose body or query did not bind.
func abortWithBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: strings.ToLower(fe.Field()), Rule: fe.Tag()})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid request", Fields: fields})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid request: " + err.Error()})
}
