package types

import (
	"errors"
	"net/http"
)

var (
	ErrNotTeamMember    = errors.New("not a member of this team")
	ErrInsufficientRole = errors.New("insufficient team role")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyRunning   = errors.New("scheduler already running")
	ErrDiscordDisabled  = errors.New("discord webhook not configured")
	ErrEmailUnverified  = errors.New("provider email is unverified and already registered")
)

// APIError carries the status code and the message shown to the client.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message, Err: ErrInvalidInput}
}

func Forbidden(message string) *APIError {
	return &APIError{Status: http.StatusForbidden, Message: message, Err: ErrInsufficientRole}
}

func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: message, Err: ErrNotFound}
}
