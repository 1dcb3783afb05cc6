package service

import (
	"errors"
	"fmt"
)

// Attempt engine errors. Handlers map each of these to an error code and status.
var (
	ErrNotEnrolled        = errors.New("not enrolled in the module of this assessment")
	ErrNoEligibleContent  = errors.New("assessment has no eligible questions")
	ErrNoActiveAttempt    = errors.New("no active attempt")
	ErrUnauthorized       = errors.New("attempt belongs to another user")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrTimeExceeded       = errors.New("attempt time exceeded")
	ErrStillInProgress    = errors.New("attempt still in progress")
	ErrPersistence        = errors.New("persistence failure")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrAttemptExpired     = errors.New("attempt expired, start again for a new attempt")
	ErrInvalidKind        = errors.New("invalid attempt kind")
)

var knownErrors = []error{
	ErrNotEnrolled,
	ErrNoEligibleContent,
	ErrNoActiveAttempt,
	ErrUnauthorized,
	ErrAlreadySubmitted,
	ErrTimeExceeded,
	ErrStillInProgress,
	ErrPersistence,
	ErrAttemptNotFound,
	ErrAssessmentNotFound,
	ErrAttemptExpired,
	ErrInvalidKind,
}

// storeErr tags err as a persistence failure unless it already is one of the
// errors above. The original error stays reachable through errors.As.
func storeErr(op string, err error) error {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrPersistence, err))
}
