package core

import (
	"errors"
	"fmt"
)

// Error kinds of the generation and listing operations. Every error leaving
// ai or storage wraps exactly one of them.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream error")
	ErrStorage      = errors.New("storage error")
)

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Upstream marks err as a failure of the generation API or the image host.
// Errors already carrying a kind are returned unchanged.
func Upstream(err error) error {
	if err == nil || hasKind(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// Storage marks err as a filesystem failure.
func Storage(err error) error {
	if err == nil || hasKind(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func hasKind(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUpstream) || errors.Is(err, ErrStorage)
}

// ErrNotFound is returned when a requested image does not exist
var ErrNotFound = errors.New("not found")
