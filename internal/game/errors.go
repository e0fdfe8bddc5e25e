package game

import (
	"errors"
	"fmt"

	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
)

// Error is a domain error returned to the issuing client only.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on code so wrapped or re-created errors still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy carrying a more specific message.
func (e *Error) With(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrUnauthorized      = &Error{Code: httperrors.ErrCodeUnauthorized, Message: "host token does not match session owner"}
	ErrNicknameTaken     = &Error{Code: httperrors.ErrCodeNicknameTaken, Message: "nickname already in use"}
	ErrNotFound          = &Error{Code: httperrors.ErrCodeNotFound, Message: "game session not found"}
	ErrInvalidTransition = &Error{Code: httperrors.ErrCodeInvalidTransition, Message: "command not valid in current phase"}
	ErrForbidden         = &Error{Code: httperrors.ErrCodeForbidden, Message: "only the host may issue this command"}
	ErrWindowClosed      = &Error{Code: httperrors.ErrCodeWindowClosed, Message: "answer window closed"}
	ErrDuplicateAnswer   = &Error{Code: httperrors.ErrCodeDuplicateAnswer, Message: "answer already submitted"}
	ErrNotConnected      = &Error{Code: httperrors.ErrCodeNotConnected, Message: "not connected to game yet"}
	ErrTransport         = &Error{Code: httperrors.ErrCodeTransportError, Message: "connection lost"}
	ErrInvalidPayload    = &Error{Code: httperrors.ErrCodeInvalidPayload, Message: "invalid payload"}
	ErrSessionClosed     = &Error{Code: httperrors.ErrCodeSessionClosed, Message: "game session closed"}
)

var known = []*Error{
	ErrUnauthorized, ErrNicknameTaken, ErrNotFound, ErrInvalidTransition, ErrForbidden,
	ErrWindowClosed, ErrDuplicateAnswer, ErrNotConnected, ErrTransport, ErrInvalidPayload, ErrSessionClosed,
}

// ErrorFromCode rebuilds a domain error received over the wire.
func ErrorFromCode(code, reason string) *Error {
	for _, e := range known {
		if e.Code == code {
			if reason == "" {
				return e
			}
			return e.With("%s", reason)
		}
	}
	return &Error{Code: code, Message: reason}
}

// CodeOf extracts the wire code of err, defaulting to internal_error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return httperrors.ErrCodeInternalError
}

// InvariantViolation reports two authoritative transitions observed out of table order.
type InvariantViolation struct {
	Pin  string
	From Phase
	To   Phase
}

func (v InvariantViolation) Error() string {
	return fmt.Sprintf("session %s: illegal transition %s -> %s", v.Pin, v.From, v.To)
}
