package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when a non-owner changes a chat avatar or
	// deletes someone else's message.
	ErrForbidden = errors.New("forbidden")

	// ErrHandleTaken is returned when a chat handle is already in use.
	ErrHandleTaken = errors.New("handle already taken")

	// ErrMediaCapability is returned when microphone or camera access is
	// denied or unavailable.
	ErrMediaCapability = errors.New("media capability unavailable")

	// ErrNoSession is returned by operations that need a logged-in user.
	ErrNoSession = errors.New("not logged in")

	// ErrNoChatSelected is returned by thread operations without a chat.
	ErrNoChatSelected = errors.New("no chat selected")

	// ErrNotFound is returned when a referenced chat or message is unknown locally.
	ErrNotFound = errors.New("not found")
)

// ValidationError blocks an action locally; no request is issued.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthError is a rejected login or registration. Message is the server's
// explanation and may be empty.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed (status %d)", e.Status)
	}
	return "authentication failed: " + e.Message
}

// TransientError is any failure to reach the Chat Service or make sense of
// its answer. The user may retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RequestError is a 4xx the client has no dedicated type for.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request rejected (status %d): %s", e.Status, e.Message)
}

// IsTransient reports whether err is a network-level failure.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
