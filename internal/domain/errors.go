package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyExtraction  = errors.New("empty extraction")
	ErrDuplicateVersion = errors.New("duplicate version")
	ErrTranslation      = errors.New("translation failed")
)

// TransportError is a fetch or render failure: network, timeout or non-2xx.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("transport %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
