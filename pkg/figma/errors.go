package figma

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure of the reference source.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"         // missing or rejected token
	KindNotFound    ErrorKind = "not_found"    // unknown file or node, or node could not be rendered
	KindTransport   ErrorKind = "transport"    // network failure or timeout
	KindBadResponse ErrorKind = "bad_response" // unexpected status or malformed body
	KindNotImage    ErrorKind = "not_image"    // downloaded payload is not a decodable image
)

// FetchError is returned by every Client call that fails.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int // HTTP status when one was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("figma %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("figma %s error: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrTokenRequired is wrapped by the error returned when no token is available.
var ErrTokenRequired = errors.New("Figma token is required. Pass figma_token or set FIGMA_TOKEN env var")

// IsKind reports whether err is a *FetchError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

func fetchErr(kind ErrorKind, status int, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, StatusCode: status, Err: fmt.Errorf(format, args...)}
}
