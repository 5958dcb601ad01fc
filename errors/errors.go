package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrNotMember        = fmt.Errorf("user is not an active member of the room")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrMessageNotFound  = fmt.Errorf("message not found")
	ErrNotSender        = fmt.Errorf("only the original sender may edit a message")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrStorageFailure   = fmt.Errorf("message store unavailable")
	ErrTransportFailure = fmt.Errorf("connection transport failure")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyWords       = fmt.Errorf("no censored words have been found")
)

// MapToHTTPStatus translates a typed failure into the status the HTTP edge
// should answer with. Unknown errors are treated as internal.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrNotMember), stderrors.Is(err, ErrNotSender):
		return http.StatusForbidden
	case stderrors.Is(err, ErrUserNotFound),
		stderrors.Is(err, ErrRoomNotFound),
		stderrors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrStorageFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
