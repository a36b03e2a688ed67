package strapi

import (
	"errors"
	"fmt"
)

// excerptLimit bounds how much of an error body is kept
const excerptLimit = 512

// ErrUnexpectedStatus marks a response outside the 2xx range
var ErrUnexpectedStatus = errors.New("unexpected response status")

// NetworkError is returned when a call to the API fails or is rejected
type NetworkError struct {
	Op         string // "fetch locations" or "submit timings"
	StatusCode int    // 0 when no response was received
	Body       string // truncated response body, if any
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("strapi %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("strapi %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func excerpt(body []byte) string {
	if len(body) <= excerptLimit {
		return string(body)
	}
	return string(body[:excerptLimit]) + "..."
}
