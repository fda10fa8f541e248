package serverutils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeMissingCoachReference = "MISSING_COACH_REFERENCE"
	CodeCoachNotFound         = "COACH_NOT_FOUND"
	CodeUpstreamUnavailable   = "UPSTREAM_UNAVAILABLE"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeShuttingDown          = "SHUTTING_DOWN"
	CodeNotFound              = "NOT_FOUND"
	CodeInternal              = "INTERNAL_ERROR"
)

// AppError is an error that already knows its HTTP status.
type AppError struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewInvalidRequest(message string) *AppError {
	return &AppError{Code: CodeInvalidRequest, Status: fiber.StatusBadRequest, Message: message}
}

func NewMissingCoachReference() *AppError {
	return &AppError{Code: CodeMissingCoachReference, Status: fiber.StatusBadRequest, Message: "coachId is required"}
}

func NewCoachNotFound(reference string) *AppError {
	return &AppError{Code: CodeCoachNotFound, Status: fiber.StatusNotFound, Message: fmt.Sprintf("coach %q not found", reference)}
}

func NewUpstreamUnavailable(err error) *AppError {
	return &AppError{Code: CodeUpstreamUnavailable, Status: fiber.StatusBadGateway, Message: "voice service unavailable", Err: err}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Status: fiber.StatusUnauthorized, Message: message}
}

func NewShuttingDown() *AppError {
	return &AppError{Code: CodeShuttingDown, Status: fiber.StatusServiceUnavailable, Message: "server is shutting down"}
}

func NewInternal(err error) *AppError {
	return &AppError{Code: CodeInternal, Status: fiber.StatusInternalServerError, Message: "internal server error", Err: err}
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ErrorHandler is installed as fiber.Config.ErrorHandler.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ctx.Status(appErr.Status).JSON(ErrorResponse(appErr.Status, appErr.Code, appErr.Message))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, CodeInvalidRequest, fiberErr.Message))
	}

	return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, CodeInternal, "internal server error"))
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Status: fiber.StatusNotFound, Message: message}
}
