package domain

import "github.com/vaultmark/vaultmark/internal/errors"

// Outcome classifies how a sync step ended.
type Outcome int

// Outcomes, in the order the scheduler's decision table checks them.
const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Classify maps an error to an outcome. Nil is success; domain errors with
// a retryable code are retryable; everything else is fatal.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.CodeOf(err).Retryable() {
		return OutcomeRetryable
	}
	return OutcomeFatal
}
