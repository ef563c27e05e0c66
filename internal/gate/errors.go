package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrison/ralph/internal/models"
)

// Kind classifies a contained gate failure.
type Kind int

const (
	// KindTimeout means the provider did not answer within the gate timeout.
	KindTimeout Kind = iota + 1
	// KindMalformed means the provider answered but no result could be parsed.
	KindMalformed
	// KindCallFailed means the provider call itself errored.
	KindCallFailed
	// KindRateLimited means the run's hourly call budget is spent.
	KindRateLimited
	// KindCircuitOpen means the circuit breaker refused the call.
	KindCircuitOpen
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "ProviderTimeout"
	case KindMalformed:
		return "ProviderResultMalformed"
	case KindCallFailed:
		return "ProviderCallFailed"
	case KindRateLimited:
		return "RateLimitExceeded"
	case KindCircuitOpen:
		return "CircuitOpen"
	default:
		return "Unknown"
	}
}

// Outcome maps the kind onto the GateResult outcome.
func (k Kind) Outcome() models.GateOutcome {
	switch k {
	case KindTimeout:
		return models.OutcomeTimeout
	case KindMalformed:
		return models.OutcomeMalformed
	case KindRateLimited:
		return models.OutcomeRateLimited
	case KindCircuitOpen:
		return models.OutcomeCircuitOpen
	default:
		return models.OutcomeCallFailed
	}
}

// countsAsBreakerFailure reports whether the kind trips the circuit breaker.
func (k Kind) countsAsBreakerFailure() bool {
	return k == KindTimeout || k == KindCallFailed
}

// GateError is a per-gate failure. It never escapes the scheduler; the
// runner converts it into a GateResult.
type GateError struct {
	Gate string
	Kind Kind
	Err  error
}

func newGateError(gate string, kind Kind, err error) *GateError {
	return &GateError{Gate: gate, Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *GateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gate %s: %s: %v", e.Gate, e.Kind, e.Err)
	}
	return fmt.Sprintf("gate %s: %s", e.Gate, e.Kind)
}

// Unwrap returns the underlying error.
func (e *GateError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a GateError in err's chain, or 0.
func KindOf(err error) Kind {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

// IsTimeout reports whether err is a gate timeout.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout || errors.Is(err, context.DeadlineExceeded)
}
