package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfig       = errors.New("configuration error")
	ErrAuth         = errors.New("authentication failed")
	ErrProcessing   = errors.New("processing failed")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
	ErrNotFound     = errors.New("not found")

	// ErrParse marks a processing response that is missing expected keys.
	// errors.Is(err, ErrProcessing) holds for every ErrParse error.
	ErrParse = fmt.Errorf("%w: malformed response", ErrProcessing)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
