package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) MatchRunCompleted(matches, skipped, totalRows int)                         {}
func (n *NoopSink) DispatchRunStarted(total int)                                              {}
func (n *NoopSink) DeliveryAttemptCompleted(attempt int, statusClass string, d time.Duration) {}
func (n *NoopSink) RetryAttempt()                                                             {}
func (n *NoopSink) DeliveryOutcome(outcome string)                                            {}
func (n *NoopSink) DispatchRunCompleted(duration time.Duration)                               {}
