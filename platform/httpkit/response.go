// Package httpkit provides shared HTTP response helpers and middleware
// for gin handlers.
package httpkit

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadcall_backend/platform/apperr"
	"leadcall_backend/platform/logger"
)

// ErrorResponse is the JSON error envelope returned by all handlers.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable error code and human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OK writes a 200 response with the given payload.
func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// NoContent writes an empty 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// HandleError maps an error to an HTTP status and writes the error envelope.
// Unknown errors are logged and returned as opaque 500s.
func HandleError(c *gin.Context, log *logger.Logger, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Wrap(apperr.KindInternal, "internal error", err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.WithContext(c.Request.Context()).Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("op", appErr.Op),
			slog.String("error", err.Error()),
		)
	}

	body := ErrorBody{
		Code:    appErr.Kind.String(),
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if status >= http.StatusInternalServerError {
		body.Message = "internal error"
		body.Details = nil
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}
