package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult marks a valid response that carried zero records.
	ErrEmptyResult = errors.New("no transactions for the selected filters")

	// ErrMalformedResponse marks a response body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrResponseTooLarge marks a response body over the client's size limit.
	ErrResponseTooLarge = errors.New("response too large")

	// ErrSuperseded is returned for a fetch whose result was discarded
	// because a newer fetch had been issued.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// NetworkError reports a failed or timed out backend request.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is or wraps a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
