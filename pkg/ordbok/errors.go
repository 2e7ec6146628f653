package ordbok

import (
	"errors"
	"fmt"
)

// UserMessage is the text shown inline when a lookup fails.
const UserMessage = "Failed to fetch suggestions. Please try again."

var (
	// ErrRequestFailed matches every *FetchError via errors.Is
	ErrRequestFailed = errors.New("suggest request failed")
	// ErrMalformed is wrapped when the response body is not the expected JSON
	ErrMalformed = errors.New("malformed suggest response")
	// ErrBadBaseURL is returned for a base url that is not absolute http(s)
	ErrBadBaseURL = errors.New("base url must be an absolute http(s) url")
)

// FetchError reports a failed lookup: transport failure, non-2xx status or an unreadable body.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("suggest request %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("suggest request %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRequestFailed) true for any FetchError
func (e *FetchError) Is(target error) bool {
	return target == ErrRequestFailed
}

// UserMessage returns the text to show the user
func (e *FetchError) UserMessage() string {
	return UserMessage
}
