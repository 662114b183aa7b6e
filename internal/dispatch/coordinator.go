// Package dispatch implements the dispatch job coordinator: a per-run state
// machine that renders and delivers one notification per matched recipient,
// with bounded retry, a same-day duplicate guard, and progress reporting
// through the job state store.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/moumitha43-ops/MAILER/internal/domain"
	"github.com/moumitha43-ops/MAILER/internal/render"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffUnit = time.Second
)

var (
	// ErrJobAlreadyRunning is returned when Start is called while a run is
	// in flight. The in-flight run's state is not touched.
	ErrJobAlreadyRunning = errors.New("a dispatch run is already in progress")
	// ErrMailerNotConfigured means the transport credentials were never
	// wired; the run is rejected before any recipient is processed.
	ErrMailerNotConfigured = errors.New("no mailer configured")
	// ErrEmptyTemplate rejects a run whose shared template is blank.
	ErrEmptyTemplate = errors.New("template is empty")
)

// Renderer produces the personalized artifact for one recipient. It is
// synchronous and deterministic: failures are never retried.
type Renderer interface {
	Render(name, identifier, templateHTML string) (render.Artifact, error)
}

// Mailer delivers one rendered notification. Failures are
// transient-retryable by contract.
type Mailer interface {
	Deliver(ctx context.Context, to, subject, htmlBody string) error
}

// Ledger is the same-day duplicate-send guard.
type Ledger interface {
	AlreadySent(email string) (bool, error)
	MarkSent(email string) error
}

// StateStore is the coordinator's channel back to polling observers.
type StateStore interface {
	TryStart(total int) bool
	RecordProgress(outcome domain.DeliveryOutcome)
	MarkFinished(errMsg string)
}

// History persists per-attempt and per-outcome records. Optional, nil =
// disabled; write failures are logged, never fatal.
type History interface {
	InsertDeliveryAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error
	InsertDeliveryOutcome(ctx context.Context, runID uuid.UUID, outcome domain.DeliveryOutcome) error
}

// AnalyticsSink records per-day outcome counts. Best-effort: the sink
// handles its own errors and never affects dispatch correctness.
type AnalyticsSink interface {
	Record(ctx context.Context, status domain.DeliveryStatus)
}

// MetricsSink defines the interface for recording dispatch metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DispatchRunStarted(total int)
	DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	RetryAttempt()
	DeliveryOutcome(outcome string)
	DispatchRunCompleted(duration time.Duration)
}

// ProgressFunc observes per-recipient completion: (completed, total, outcome).
type ProgressFunc func(completed, total int, outcome domain.DeliveryOutcome)

type Coordinator struct {
	state    StateStore
	ledger   Ledger
	renderer Renderer
	mailer   Mailer

	maxRetries  int
	backoffUnit time.Duration
	limiter     *rate.Limiter // optional, nil = unlimited

	history   History       // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
	progress  ProgressFunc  // optional
}

func New(state StateStore, ledger Ledger, renderer Renderer, mailer Mailer) *Coordinator {
	return &Coordinator{
		state:       state,
		ledger:      ledger,
		renderer:    renderer,
		mailer:      mailer,
		maxRetries:  defaultMaxRetries,
		backoffUnit: defaultBackoffUnit,
	}
}

// WithMaxRetries bounds delivery attempts per recipient.
func (c *Coordinator) WithMaxRetries(n int) *Coordinator {
	if n > 0 {
		c.maxRetries = n
	}
	return c
}

// WithBackoffUnit scales the exponential backoff. The delay before attempt
// n is 2^(n-1) units.
func (c *Coordinator) WithBackoffUnit(unit time.Duration) *Coordinator {
	if unit > 0 {
		c.backoffUnit = unit
	}
	return c
}

// WithRateLimit caps delivery attempts per second across the run.
// Zero or negative disables the limiter.
func (c *Coordinator) WithRateLimit(perSecond float64) *Coordinator {
	if perSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return c
}

// WithHistory attaches a persistent attempt/outcome store.
func (c *Coordinator) WithHistory(h History) *Coordinator {
	c.history = h
	return c
}

// WithAnalytics attaches a per-day outcome counter sink.
func (c *Coordinator) WithAnalytics(sink AnalyticsSink) *Coordinator {
	c.analytics = sink
	return c
}

// WithMetrics attaches a metrics sink to the coordinator.
func (c *Coordinator) WithMetrics(sink MetricsSink) *Coordinator {
	c.metrics = sink
	return c
}

// WithProgress attaches a per-recipient progress observer.
func (c *Coordinator) WithProgress(fn ProgressFunc) *Coordinator {
	c.progress = fn
	return c
}

// Start begins one asynchronous dispatch run over matches. It returns
// immediately; the run proceeds on its own goroutine and reports through the
// state store. The returned channel (capacity 1) receives the final summary,
// for in-process callers like the daily trigger; external observers poll the
// state store instead. At most one run may be active: a second Start fails
// with ErrJobAlreadyRunning and performs no work.
func (c *Coordinator) Start(matches []domain.MatchRecord, templateHTML string) (<-chan domain.RunSummary, error) {
	if c.mailer == nil {
		return nil, ErrMailerNotConfigured
	}
	if strings.TrimSpace(templateHTML) == "" {
		return nil, ErrEmptyTemplate
	}
	if !c.state.TryStart(len(matches)) {
		return nil, ErrJobAlreadyRunning
	}

	runID := uuid.New()
	done := make(chan domain.RunSummary, 1)
	log.Printf("dispatch: run=%s started, %d recipient(s)", runID, len(matches))

	go c.run(runID, matches, templateHTML, done)
	return done, nil
}

// run processes recipients strictly sequentially in input order. Rendering
// and delivery share per-run rate limits, and sequential execution keeps the
// duplicate guard and progress counter trivially correct.
func (c *Coordinator) run(runID uuid.UUID, matches []domain.MatchRecord, templateHTML string, done chan<- domain.RunSummary) {
	start := time.Now()
	if c.metrics != nil {
		c.metrics.DispatchRunStarted(len(matches))
	}

	// Runs always proceed to completion; there is no mid-run cancellation.
	ctx := context.Background()

	summary := domain.RunSummary{RunID: runID, Total: len(matches)}
	for i, m := range matches {
		outcome := c.processRecipient(ctx, runID, m, templateHTML)

		switch outcome.Status {
		case domain.DeliveryStatusSent:
			summary.Sent = append(summary.Sent, outcome)
		case domain.DeliveryStatusSkipped:
			summary.Skipped = append(summary.Skipped, outcome)
		default:
			summary.Failed = append(summary.Failed, outcome)
		}

		c.state.RecordProgress(outcome)
		if c.history != nil {
			if err := c.history.InsertDeliveryOutcome(ctx, runID, outcome); err != nil {
				log.Printf("dispatch: run=%s failed to record outcome: %v", runID, err)
			}
		}
		if c.analytics != nil {
			c.analytics.Record(ctx, outcome.Status)
		}
		if c.metrics != nil {
			c.metrics.DeliveryOutcome(string(outcome.Status))
		}
		if c.progress != nil {
			c.progress(i+1, len(matches), outcome)
		}
	}

	c.state.MarkFinished("")
	if c.metrics != nil {
		c.metrics.DispatchRunCompleted(time.Since(start))
	}
	log.Printf("dispatch: run=%s complete, %d sent, %d failed, %d skipped",
		runID, len(summary.Sent), len(summary.Failed), len(summary.Skipped))
	done <- summary
}

func (c *Coordinator) processRecipient(ctx context.Context, runID uuid.UUID, m domain.MatchRecord, templateHTML string) domain.DeliveryOutcome {
	outcome := domain.DeliveryOutcome{Name: m.Name, Email: m.Email}

	// Skip-early duplicate policy: the ledger is consulted before any
	// rendering work happens.
	already, err := c.ledger.AlreadySent(m.Email)
	if err != nil {
		log.Printf("dispatch: run=%s ledger check for %s: %v", runID, m.Email, err)
	}
	if already {
		log.Printf("dispatch: run=%s skip duplicate %s <%s>", runID, m.Name, m.Email)
		outcome.Status = domain.DeliveryStatusSkipped
		outcome.Error = "already sent today"
		return outcome
	}

	artifact, err := c.renderer.Render(m.Name, m.Identifier, templateHTML)
	if err != nil {
		// Rendering is deterministic for a given template and name, so a
		// retry cannot succeed. No delivery attempt is made.
		log.Printf("dispatch: run=%s render failed for %s: %v", runID, m.Name, err)
		outcome.Status = domain.DeliveryStatusFailed
		outcome.Error = err.Error()
		return outcome
	}

	subject := fmt.Sprintf("Happy Birthday %s 🎉", m.Name)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			if c.metrics != nil {
				c.metrics.RetryAttempt()
			}
			backoff := c.backoffUnit * (1 << (attempt - 1))
			log.Printf("dispatch: run=%s retry %d/%d for %s backoff=%s",
				runID, attempt, c.maxRetries, m.Email, backoff)
			time.Sleep(backoff)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				log.Printf("dispatch: run=%s rate limiter: %v", runID, err)
			}
		}

		startedAt := time.Now().UTC()
		err := c.mailer.Deliver(ctx, m.Email, subject, artifact.Body)
		finishedAt := time.Now().UTC()

		if c.metrics != nil {
			c.metrics.DeliveryAttemptCompleted(attempt, classifyAttempt(err), finishedAt.Sub(startedAt))
		}
		c.recordAttempt(ctx, runID, m.Email, attempt, err, startedAt, finishedAt)

		if err == nil {
			if lerr := c.ledger.MarkSent(m.Email); lerr != nil {
				log.Printf("dispatch: run=%s failed to mark %s in ledger: %v", runID, m.Email, lerr)
			}
			log.Printf("dispatch: run=%s sent to %s <%s> attempt=%d", runID, m.Name, m.Email, attempt)
			outcome.Status = domain.DeliveryStatusSent
			return outcome
		}

		lastErr = err
		log.Printf("dispatch: run=%s attempt %d/%d for %s failed: %v",
			runID, attempt, c.maxRetries, m.Email, err)
	}

	log.Printf("dispatch: run=%s failed for %s <%s> after %d attempts: %v",
		runID, m.Name, m.Email, c.maxRetries, lastErr)
	outcome.Status = domain.DeliveryStatusFailed
	if lastErr != nil {
		outcome.Error = lastErr.Error()
	}
	return outcome
}

func (c *Coordinator) recordAttempt(ctx context.Context, runID uuid.UUID, email string, attempt int, attemptErr error, startedAt, finishedAt time.Time) {
	if c.history == nil {
		return
	}
	record := domain.DeliveryAttempt{
		ID:         uuid.New(),
		RunID:      runID,
		Email:      email,
		Attempt:    attempt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if attemptErr != nil {
		record.Error = attemptErr.Error()
	}
	if err := c.history.InsertDeliveryAttempt(ctx, record); err != nil {
		log.Printf("dispatch: run=%s failed to record attempt: %v", runID, err)
	}
}

// classifyAttempt maps a delivery error to a bounded-cardinality metrics
// status class.
func classifyAttempt(err error) string {
	if err == nil {
		return "success"
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return "timeout"
	}
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") || strings.Contains(msg, "dial") {
		return "connection_error"
	}
	return "other_error"
}
