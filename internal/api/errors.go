package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds a failed request can be matched against with errors.Is.
var (
	ErrNotFound      = errors.New("background not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrUndecodable   = errors.New("image could not be decoded")
	ErrUnavailable   = errors.New("storage unavailable")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBusy          = errors.New("server busy")
)

// errCodeRouteNotFound is the numeric code of a 404 for an unknown path, as
// opposed to a missing background.
const errCodeRouteNotFound = 2002

// APIError is the decoded error envelope of a failed request.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Status > 0 {
		msg = fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	switch {
	case e.Code != "" && msg != "":
		return e.Code + ": " + msg
	case msg != "":
		return msg
	default:
		return "api error"
	}
}

// Is reports whether the envelope carries the error kind target.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrNotFound:
		return e.Code == "not_found" && e.ErrorCode != errCodeRouteNotFound
	case ErrQuotaExceeded:
		return e.Code == "quota_exceeded"
	case ErrUndecodable:
		return e.Code == "undecodable"
	case ErrUnavailable:
		return e.Code == "unavailable"
	case ErrUnauthorized:
		return e.Code == "unauthorized" || e.Code == "forbidden"
	case ErrBusy:
		return e.Code == "resource_exhausted"
	}
	return false
}
