package domain

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
	DeliveryStatusSkipped DeliveryStatus = "skipped"
)

// DeliveryOutcome is the final result for one recipient in a dispatch run.
// Error holds the last attempt's error for failed outcomes.
type DeliveryOutcome struct {
	Name   string
	Email  string
	Status DeliveryStatus
	Error  string
}

// DeliveryAttempt records a single delivery attempt within a run.
type DeliveryAttempt struct {
	ID    uuid.UUID
	RunID uuid.UUID

	Email   string
	Attempt int
	Error   string

	StartedAt  time.Time
	FinishedAt time.Time
}

// RunSummary aggregates a completed dispatch run. The three tallies are
// exhaustive and disjoint: every input MatchRecord appears in exactly one.
type RunSummary struct {
	RunID uuid.UUID

	Sent    []DeliveryOutcome
	Failed  []DeliveryOutcome
	Skipped []DeliveryOutcome
	Total   int
}

// JobState is the observable state of the current (or most recent) dispatch
// run. Snapshots handed to observers are copies; Results order follows the
// input match order.
type JobState struct {
	Running  bool
	Progress int
	Total    int
	Results  []DeliveryOutcome
	Error    string
}
