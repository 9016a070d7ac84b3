package domain

import "errors"

var (
	ErrInvalidJoin       = errors.New("username and room_id are required to join")
	ErrMalformedEvent    = errors.New("event is missing required routing fields")
	ErrUnknownActionType = errors.New("unknown action type")
	ErrUnknownEvent      = errors.New("unknown event type")
	ErrStaleHandle       = errors.New("connection is no longer registered")
)

// Error codes sent to clients.
const (
	ErrCodeInvalidJoin       = "INVALID_JOIN"
	ErrCodeMalformedEvent    = "MALFORMED_EVENT"
	ErrCodeUnknownActionType = "UNKNOWN_ACTION_TYPE"
	ErrCodeUnknownEvent      = "UNKNOWN_EVENT"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// ErrorCode maps an error to the code reported to the client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidJoin):
		return ErrCodeInvalidJoin
	case errors.Is(err, ErrMalformedEvent):
		return ErrCodeMalformedEvent
	case errors.Is(err, ErrUnknownActionType):
		return ErrCodeUnknownActionType
	case errors.Is(err, ErrUnknownEvent):
		return ErrCodeUnknownEvent
	default:
		return ErrCodeInternalError
	}
}
