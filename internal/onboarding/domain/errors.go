package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionStoreUnavailable signals the persistence layer cannot be
	// reached. Session creation recovers through the degraded identifier
	// path; every other operation surfaces it as-is.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")

	// ErrUnknownSession means the caller referenced an identifier with no
	// stored session behind it. Clients are told to restart onboarding.
	ErrUnknownSession = errors.New("unknown onboarding session, please restart onboarding")

	// ErrOutOfOrderStep rejects a step whose predecessor data is missing.
	ErrOutOfOrderStep = errors.New("step submitted out of order")

	// ErrPersistenceVerificationFailed means the post-write read-back did not
	// match what was written. The transaction is rolled back, the stored
	// status never advances, and the failure is surfaced hard.
	ErrPersistenceVerificationFailed = errors.New("persisted session did not match written state")

	// ErrPrerequisiteNotMet rejects risk evaluation before OTP verification.
	ErrPrerequisiteNotMet = errors.New("session has not completed the required steps")
)

// InvalidPayloadError lists the missing or malformed fields of a step
// submission so the client can correct them. Reason, when set, carries a
// human explanation such as an expired verification code.
type InvalidPayloadError struct {
	Step   StepKind
	Fields []string
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s payload: %s", e.Step, e.Reason)
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Step, strings.Join(e.Fields, ", "))
}

// NewInvalidPayloadError builds the validation failure for one step.
func NewInvalidPayloadError(step StepKind, fields ...string) *InvalidPayloadError {
	return &InvalidPayloadError{Step: step, Fields: fields}
}

// NewPayloadReasonError builds a payload failure with a narrative reason.
func NewPayloadReasonError(step StepKind, field, reason string) *InvalidPayloadError {
	return &InvalidPayloadError{Step: step, Fields: []string{field}, Reason: reason}
}

// IsInvalidPayload unwraps the field list when err is a payload failure.
func IsInvalidPayload(err error) (*InvalidPayloadError, bool) {
	var ipe *InvalidPayloadError
	if errors.As(err, &ipe) {
		return ipe, true
	}
	return nil, false
}
