// Package scheduler owns the automatic daily run: at the configured local
// send time it matches the roster, starts a dispatch run, waits for the
// summary and mails it to the operator.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/moumitha43-ops/MAILER/internal/domain"
)

// ErrInvalidSendTime is returned when the configured send time is not HH:MM.
var ErrInvalidSendTime = errors.New("send time must be HH:MM")

// Matcher computes today's birthday matches from the configured roster.
type Matcher interface {
	Match() (domain.MatchResult, error)
}

// Dispatcher starts an asynchronous dispatch run and hands back the channel
// that will carry its final summary.
type Dispatcher interface {
	Start(matches []domain.MatchRecord, templateHTML string) (<-chan domain.RunSummary, error)
}

// TemplateSource loads the shared card template.
type TemplateSource interface {
	Load() (string, error)
}

// Notifier delivers the end-of-run summary to the operator.
type Notifier interface {
	Notify(ctx context.Context, summary domain.RunSummary) error
}

// Daily fires one dispatch pass per day at a fixed local time.
type Daily struct {
	sendTime  string
	loc       *time.Location
	matcher   Matcher
	disp      Dispatcher
	templates TemplateSource
	notifier  Notifier // optional

	cron  *cron.Cron
	entry cron.EntryID
}

func New(sendTime string, loc *time.Location, matcher Matcher, disp Dispatcher, templates TemplateSource) (*Daily, error) {
	if _, _, err := ParseSendTime(sendTime); err != nil {
		return nil, err
	}
	return &Daily{
		sendTime:  sendTime,
		loc:       loc,
		matcher:   matcher,
		disp:      disp,
		templates: templates,
		cron:      cron.New(cron.WithLocation(loc)),
	}, nil
}

// WithNotifier attaches an operator summary notifier.
func (d *Daily) WithNotifier(n Notifier) *Daily {
	d.notifier = n
	return d
}

// Start registers the daily entry and begins ticking.
func (d *Daily) Start() error {
	spec, err := CronSpec(d.sendTime)
	if err != nil {
		return err
	}
	id, err := d.cron.AddFunc(spec, func() { d.RunOnce(context.Background()) })
	if err != nil {
		return fmt.Errorf("register daily entry: %w", err)
	}
	d.entry = id
	d.cron.Start()
	log.Printf("scheduler: daily run scheduled at %s (%s)", d.sendTime, d.loc)
	return nil
}

// Stop halts the ticker and waits for an in-flight RunOnce to return.
// The dispatch run itself keeps going on its own goroutine.
func (d *Daily) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
	log.Println("scheduler: stopped")
}

// NextRun reports when the next daily pass fires. ok is false before Start.
func (d *Daily) NextRun() (time.Time, bool) {
	if d.entry == 0 {
		return time.Time{}, false
	}
	return d.cron.Entry(d.entry).Next, true
}

// RunOnce executes one complete pass: match, dispatch, await the summary,
// notify. Errors are logged and swallowed so tomorrow's pass still fires.
func (d *Daily) RunOnce(ctx context.Context) {
	log.Println("scheduler: daily birthday pass starting")

	result, err := d.matcher.Match()
	if err != nil {
		log.Printf("scheduler: match failed: %v", err)
		return
	}
	if len(result.Matches) == 0 {
		log.Println("scheduler: no birthdays today")
		return
	}

	tmpl, err := d.templates.Load()
	if err != nil {
		log.Printf("scheduler: template load failed: %v", err)
		return
	}

	done, err := d.disp.Start(result.Matches, tmpl)
	if err != nil {
		log.Printf("scheduler: dispatch rejected: %v", err)
		return
	}

	summary := <-done
	log.Printf("scheduler: daily pass complete, %d sent, %d failed, %d skipped",
		len(summary.Sent), len(summary.Failed), len(summary.Skipped))

	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, summary); err != nil {
			log.Printf("scheduler: operator summary failed: %v", err)
		}
	}
}

// ParseSendTime validates an HH:MM wall-clock time.
func ParseSendTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSendTime, s)
	}
	return t.Hour(), t.Minute(), nil
}

// CronSpec converts an HH:MM send time into a standard five-field cron
// expression firing once per day.
func CronSpec(sendTime string) (string, error) {
	hour, minute, err := ParseSendTime(sendTime)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
