package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/moumitha43-ops/MAILER/internal/domain"
	"github.com/moumitha43-ops/MAILER/internal/testutil"
)

type fakeMatcher struct {
	result domain.MatchResult
	err    error
}

func (m *fakeMatcher) Match() (domain.MatchResult, error) {
	return m.result, m.err
}

type fakeDispatcher struct {
	mu      sync.Mutex
	started [][]domain.MatchRecord
	tmpl    string
	summary domain.RunSummary
	err     error
}

func (d *fakeDispatcher) Start(matches []domain.MatchRecord, templateHTML string) (<-chan domain.RunSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.started = append(d.started, matches)
	d.tmpl = templateHTML
	done := make(chan domain.RunSummary, 1)
	done <- d.summary
	return done, nil
}

func (d *fakeDispatcher) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.started)
}

type fakeTemplates struct {
	html string
	err  error
}

func (t *fakeTemplates) Load() (string, error) {
	return t.html, t.err
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []domain.RunSummary
}

func (n *recordingNotifier) Notify(ctx context.Context, summary domain.RunSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return nil
}

func TestParseSendTime(t *testing.T) {
	tests := []struct {
		raw       string
		hour, min int
		wantErr   bool
	}{
		{raw: "08:00", hour: 8, min: 0},
		{raw: "23:59", hour: 23, min: 59},
		{raw: "00:00", hour: 0, min: 0},
		{raw: "8 am", wantErr: true},
		{raw: "25:00", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		hour, min, err := ParseSendTime(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSendTime) {
				t.Errorf("ParseSendTime(%q) error = %v, want ErrInvalidSendTime", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSendTime(%q) error: %v", tt.raw, err)
			continue
		}
		if hour != tt.hour || min != tt.min {
			t.Errorf("ParseSendTime(%q) = %d:%d, want %d:%d", tt.raw, hour, min, tt.hour, tt.min)
		}
	}
}

func TestCronSpec(t *testing.T) {
	spec, err := CronSpec("08:30")
	if err != nil {
		t.Fatalf("CronSpec error: %v", err)
	}
	if spec != "30 8 * * *" {
		t.Errorf("CronSpec = %q, want %q", spec, "30 8 * * *")
	}
}

func TestNewRejectsBadSendTime(t *testing.T) {
	if _, err := New("nope", time.UTC, &fakeMatcher{}, &fakeDispatcher{}, &fakeTemplates{}); !errors.Is(err, ErrInvalidSendTime) {
		t.Errorf("New error = %v, want ErrInvalidSendTime", err)
	}
}

func TestRunOnceDispatchesAndNotifies(t *testing.T) {
	matches := []domain.MatchRecord{{RowNum: 1, Name: "Ann", Email: "ann@example.com"}}
	summary := domain.RunSummary{
		RunID: uuid.New(),
		Sent:  []domain.DeliveryOutcome{{Name: "Ann", Email: "ann@example.com", Status: domain.DeliveryStatusSent}},
		Total: 1,
	}

	disp := &fakeDispatcher{summary: summary}
	notifier := &recordingNotifier{}
	d, err := New("08:00", time.UTC, &fakeMatcher{result: domain.MatchResult{Matches: matches, TotalRows: 1}}, disp, &fakeTemplates{html: "<p>{{name}}</p>"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d = d.WithNotifier(notifier)

	d.RunOnce(testutil.TestContext(t))

	if disp.startCount() != 1 {
		t.Fatalf("dispatch started %d times, want 1", disp.startCount())
	}
	if disp.tmpl != "<p>{{name}}</p>" {
		t.Errorf("template = %q", disp.tmpl)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.summaries) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(notifier.summaries))
	}
	if notifier.summaries[0].RunID != summary.RunID {
		t.Error("notifier received a different summary")
	}
}

func TestRunOnceSkipsWhenNoMatches(t *testing.T) {
	disp := &fakeDispatcher{}
	d, err := New("08:00", time.UTC, &fakeMatcher{result: domain.MatchResult{TotalRows: 5}}, disp, &fakeTemplates{html: "<p>x</p>"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	d.RunOnce(testutil.TestContext(t))

	if disp.startCount() != 0 {
		t.Error("dispatch must not start with zero matches")
	}
}

func TestRunOnceSwallowsMatchError(t *testing.T) {
	disp := &fakeDispatcher{}
	d, err := New("08:00", time.UTC, &fakeMatcher{err: errors.New("roster missing")}, disp, &fakeTemplates{html: "<p>x</p>"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	d.RunOnce(testutil.TestContext(t))

	if disp.startCount() != 0 {
		t.Error("dispatch must not start when matching fails")
	}
}

func TestRunOnceSwallowsDispatchRejection(t *testing.T) {
	matches := []domain.MatchRecord{{Name: "Ann", Email: "ann@example.com"}}
	disp := &fakeDispatcher{err: errors.New("already running")}
	d, err := New("08:00", time.UTC, &fakeMatcher{result: domain.MatchResult{Matches: matches}}, disp, &fakeTemplates{html: "<p>x</p>"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	// Must not panic or block.
	d.RunOnce(testutil.TestContext(t))
}

func TestNextRunBeforeStart(t *testing.T) {
	d, err := New("08:00", time.UTC, &fakeMatcher{}, &fakeDispatcher{}, &fakeTemplates{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := d.NextRun(); ok {
		t.Error("NextRun should report not scheduled before Start")
	}
}

func TestStartSchedulesDailyEntry(t *testing.T) {
	d, err := New("08:00", time.UTC, &fakeMatcher{}, &fakeDispatcher{}, &fakeTemplates{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer d.Stop()

	next, ok := d.NextRun()
	if !ok {
		t.Fatal("NextRun should report scheduled after Start")
	}
	if next.Hour() != 8 || next.Minute() != 0 {
		t.Errorf("next run = %s, want 08:00 local", next)
	}
}

func TestSummaryBody(t *testing.T) {
	body := summaryBody(domain.RunSummary{
		Total: 2,
		Sent:  []domain.DeliveryOutcome{{Name: "Ann", Email: "ann@example.com", Status: domain.DeliveryStatusSent}},
		Failed: []domain.DeliveryOutcome{
			{Name: "Bob", Email: "bob@example.com", Status: domain.DeliveryStatusFailed, Error: "mailbox full"},
		},
	})

	for _, want := range []string{"Ann", "bob@example.com", "mailbox full", "Sent (1)", "Failed (1)", "Skipped (0)"} {
		if !strings.Contains(body, want) {
			t.Errorf("summary body missing %q", want)
		}
	}
}

func TestMailNotifierSkipsWithoutAdmin(t *testing.T) {
	n := NewMailNotifier(failingMailer{}, "")
	if err := n.Notify(context.Background(), domain.RunSummary{}); err != nil {
		t.Errorf("Notify without admin address should be a no-op, got %v", err)
	}
}

type failingMailer struct{}

func (failingMailer) Deliver(ctx context.Context, to, subject, htmlBody string) error {
	return errors.New("should not be called")
}
