package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Matching metrics
	MatchRunCompleted(matches, skipped, totalRows int)

	// Dispatch metrics
	DispatchRunStarted(total int)
	DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	RetryAttempt()
	DeliveryOutcome(outcome string)
	DispatchRunCompleted(duration time.Duration)
}

// Outcome constants for DeliveryOutcome.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Status classes for DeliveryAttemptCompleted.
const (
	StatusClassSuccess         = "success"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)
