package authapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork is returned when the request never produced a response.
	ErrNetwork = errors.New("network unavailable")
	// ErrMalformed is returned when a 2xx body does not have the expected shape.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is a non-2xx response. 401 responses unwrap to ErrUnauthorized.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// IsRejected reports whether the platform refused the request or the
// credentials it carried: 400, 401 or 403. Throttling (429), timeouts (408)
// and other 4xx responses are not rejections.
func IsRejected(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	default:
		return false
	}
}
