// Package apperr carries HTTP-status-tagged errors from the service layer
// to the handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure the caller is allowed to see. Status is the HTTP
// status the handler answers with; Message goes to the client verbatim.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Wrap(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Err: cause}
}

func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

// Forbidden is also used for "not found" on most participant and resource
// lookups, so that a 404 does not confirm which ids exist.
func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

func MethodNotAllowed(message string) *Error { return New(http.StatusMethodNotAllowed, message) }

// Conflict is answered with 403 to match the existing clients, which treat
// a duplicate email as a forbidden action.
func Conflict(message string) *Error { return New(http.StatusForbidden, message) }

// Code failures raised by the attempt limiter.
const (
	MsgLockedOut      = "You've reached maximum number of attempts. Try again later."
	MsgInvalidInvite  = "Invalid invite code."
	MsgInvalidCode    = "Invalid code."
	MsgRequestAgain   = "Invalid code. Kindly request again for password reset."
	MsgUnauthorized   = "You are not authorized to perform this action."
	MsgInvalidLogin   = "Invalid email or password."
	MsgContactAdmin   = "Your group is not active. Please contact your administrator."
	MsgNotInvited     = "The participant is already active or doesn't exist anymore."
	MsgDuplicateEmail = "The email provided is already registered."
)

var (
	ErrLockedOut = Forbidden(MsgLockedOut)
)

// LockedOut reports whether err is the attempt-limiter lockout.
func LockedOut(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusForbidden && e.Message == MsgLockedOut
}

// StatusOf returns the status carried by err, or 500 when err is not an *Error.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
