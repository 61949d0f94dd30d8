package ledger

import (
	"errors"
	"fmt"
)

// ErrUnknownOperation means the cost catalog has no entry for the requested
// (app, operation) pair. A catalog misconfiguration, not a user error.
var ErrUnknownOperation = errors.New("unknown operation")

// ErrInsufficientCredits is the sentinel for errors.Is matching; the carried
// amounts live on InsufficientCreditsError.
var ErrInsufficientCredits = errors.New("insufficient credits")

// InsufficientCreditsError reports a blocked deduction. User-correctable by
// purchasing a top-up.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
