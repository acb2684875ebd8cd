package credit

import (
	"errors"

	"creditledger/core/state"
	nativecommon "creditledger/native/common"
)

var (
	// ErrUnauthorized marks failed role or ownership checks.
	ErrUnauthorized = errors.New("credit engine: unauthorized")
	// ErrPaused is returned for mutations attempted while the ledger is paused.
	ErrPaused = nativecommon.ErrModulePaused
	// ErrNotFound marks references to unknown identities, profiles or plans.
	ErrNotFound = errors.New("credit engine: not found")
	// ErrAlreadyExists marks duplicate registrations.
	ErrAlreadyExists = errors.New("credit engine: already exists")
	// ErrInvalidArgument marks zero or negative amounts and malformed inputs.
	ErrInvalidArgument = errors.New("credit engine: invalid argument")
	// ErrInvalidState marks operations that do not fit the plan lifecycle.
	ErrInvalidState = errors.New("credit engine: invalid state")
	// ErrOverpayment is returned when a payment exceeds the remaining debt.
	ErrOverpayment = errors.New("credit engine: payment exceeds unpaid debt")
	// ErrPlanClosed is returned for payments against completed plans.
	ErrPlanClosed = errors.New("credit engine: payment plan closed")
	// ErrStorageUnavailable wraps backend failures. It is safe to retry.
	ErrStorageUnavailable = state.ErrUnavailable
)

// IsDomainError reports whether err belongs to the ledger error taxonomy as
// opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrUnauthorized, ErrPaused, ErrNotFound, ErrAlreadyExists,
		ErrInvalidArgument, ErrInvalidState, ErrOverpayment, ErrPlanClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
