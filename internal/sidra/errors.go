package sidra

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuery     = errors.New("invalid sidra query")
	ErrTableNotFound    = errors.New("sidra table not found")
	ErrNoDataReturned   = errors.New("sidra returned no data rows")
	ErrLocationNotFound = errors.New("location not found")
	ErrConceptNotFound  = errors.New("concept not found")
	ErrNetwork          = errors.New("sidra network error")
)

type RequestError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("sidra request failed after %d attempts (status %d): %v", e.Attempts, e.StatusCode, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
