package loader

import (
	"errors"
	"fmt"
)

// Sentinel errors for fetch operations.
var (
	ErrUnsupportedURL   = errors.New("unsupported resource URL")
	ErrFetchStatus      = errors.New("unexpected fetch status")
	ErrResourceTooLarge = errors.New("resource exceeds maximum size")
	ErrNilHost          = errors.New("nil script host")
)

// LoadError reports a resource that could not be fetched or activated.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
