package server

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dudu/ruse/internal/log"
)

// Error carries the HTTP status a failure should be reported with
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps msg with an HTTP status
func NewError(code int, msg string) error {
	return &Error{Code: code, Err: errors.New(msg)}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// handleError maps err to a response. Errors without a status are internal
// and get a trace id the caller can report.
func handleError(c *fiber.Ctx, err error, operation string) error {
	requestID := GetRequestID(c)

	var respErr *Error
	if errors.As(err, &respErr) {
		log.Warn(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       c.Path(),
			"operation":  operation,
		}, "[server.handleError] operation failed with error response")
		return c.Status(respErr.Code).JSON(ErrorResponse{Error: err.Error()})
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		log.Warn(log.Fields{
			"request_id": requestID,
			"path":       c.Path(),
			"fields":     details,
		}, "[server.handleError] validation failed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"code":   "VALIDATION_ERROR",
			"fields": details,
		})
	}

	traceID := log.ErrorWithTraceID(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       c.Path(),
		"operation":  operation,
	}, "[server.handleError] internal error")
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal server error",
		Code:    "INTERNAL_ERROR",
		TraceID: traceID,
	})
}
