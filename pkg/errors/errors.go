package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"

	CodeRateLimited          = "RATE_LIMITED"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"

	// Reservation outcomes. All of these are "pick another time" answers, not faults.
	CodeNoSlotsForDate     = "NO_SLOTS_FOR_DATE"
	CodeTimeNotOffered     = "TIME_NOT_OFFERED"
	CodeAlreadyBooked      = "ALREADY_BOOKED"
	CodeSlotRaceLost       = "SLOT_RACE_LOST"
	CodePastSlot           = "PAST_SLOT"
	CodeNewSlotUnavailable = "NEW_SLOT_UNAVAILABLE"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeClientInactive     = "CLIENT_INACTIVE"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NotFoundWithID(resource, id string) *AppError {
	return NotFound(resource).WithDetails(map[string]any{
		"resource": resource,
		"id":       id,
	})
}

func Validation(message string, details map[string]any) *AppError {
	return New(CodeValidation, message, http.StatusUnprocessableEntity).WithDetails(details)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func AlreadyExists(message string) *AppError {
	return New(CodeAlreadyExists, message, http.StatusConflict)
}

func NoSlotsForDate(date string) *AppError {
	return New(CodeNoSlotsForDate, "No slots available for this date", http.StatusNotFound).
		WithDetails(map[string]any{"date": date})
}

func TimeNotOffered(date, time string) *AppError {
	return New(CodeTimeNotOffered, "Selected time does not exist for this date", http.StatusBadRequest).
		WithDetails(map[string]any{"date": date, "time": time})
}

func AlreadyBooked(date, time string) *AppError {
	return New(CodeAlreadyBooked, "Selected time is already booked", http.StatusConflict).
		WithDetails(map[string]any{"date": date, "time": time})
}

func SlotRaceLost(date, time string) *AppError {
	return New(CodeSlotRaceLost, "Slot just got booked, please try another time", http.StatusConflict).
		WithDetails(map[string]any{"date": date, "time": time})
}

func PastSlot(date, time string) *AppError {
	return New(CodePastSlot, "Selected time has already passed", http.StatusBadRequest).
		WithDetails(map[string]any{"date": date, "time": time})
}

func NewSlotUnavailable(date, time string) *AppError {
	return New(CodeNewSlotUnavailable, "New slot not available", http.StatusConflict).
		WithDetails(map[string]any{"date": date, "time": time})
}

func ClientInactive(clientID string) *AppError {
	return New(CodeClientInactive, "Client is not active", http.StatusForbidden).
		WithDetails(map[string]any{"client_id": clientID})
}

func Internal(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

func Timeout(message string) *AppError {
	return New(CodeTimeout, message, http.StatusGatewayTimeout)
}

func Unavailable(service string) *AppError {
	return New(CodeUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

func RateLimited(message string) *AppError {
	return New(CodeRateLimited, message, http.StatusTooManyRequests)
}

func PayloadTooLarge(limit int64) *AppError {
	return New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]any{"max_bytes": limit})
}

func UnsupportedMediaType(message string) *AppError {
	return New(CodeUnsupportedMediaType, message, http.StatusUnsupportedMediaType)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError unwraps err to an AppError. Anything else becomes INTERNAL_ERROR.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsBusinessRule reports whether err is an expected domain outcome rather than
// an infrastructure fault that transport-level retry could help with.
func IsBusinessRule(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeInternal, CodeUnavailable, CodeTimeout:
		return false
	}
	return true
}
