package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moumitha43-ops/MAILER/internal/dispatch"
	"github.com/moumitha43-ops/MAILER/internal/domain"
	"github.com/moumitha43-ops/MAILER/internal/roster"
)

type fakeMatcher struct {
	result domain.MatchResult
	report domain.ValidationReport
	err    error
}

func (m *fakeMatcher) Match() (domain.MatchResult, error) {
	return m.result, m.err
}

func (m *fakeMatcher) Validate() (domain.ValidationReport, error) {
	return m.report, m.err
}

type fakeDispatcher struct {
	mu      sync.Mutex
	started int
	err     error
}

func (d *fakeDispatcher) Start(matches []domain.MatchRecord, templateHTML string) (<-chan domain.RunSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.started++
	done := make(chan domain.RunSummary, 1)
	done <- domain.RunSummary{Total: len(matches)}
	return done, nil
}

type fakeState struct {
	state domain.JobState
}

func (s *fakeState) Snapshot() domain.JobState {
	return s.state
}

type fakeTemplates struct {
	mu      sync.Mutex
	html    string
	loadErr error
	saveErr error
}

func (t *fakeTemplates) Load() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.html, t.loadErr
}

func (t *fakeTemplates) Save(html string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.saveErr != nil {
		return t.saveErr
	}
	t.html = html
	return nil
}

type fakeSettings struct{}

func (fakeSettings) MaskedJSON() ([]byte, error) {
	return []byte(`{"timezone":"UTC"}`), nil
}

type fakeHistory struct {
	outcomes []domain.DeliveryOutcome
	from, to time.Time
	err      error
}

func (h *fakeHistory) ListOutcomes(ctx context.Context, from, to time.Time) ([]domain.DeliveryOutcome, error) {
	h.from, h.to = from, to
	return h.outcomes, h.err
}

func newTestHandler(matcher MatchService, disp Dispatcher, state StateSource, templates TemplateStore) *Handler {
	return NewHandler(matcher, disp, state, templates, fakeSettings{}, time.UTC)
}

func doRequest(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})
	rec := doRequest(t, h, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestListMatches(t *testing.T) {
	matcher := &fakeMatcher{result: domain.MatchResult{
		Matches:   []domain.MatchRecord{{RowNum: 1, Name: "Ann", Email: "ann@example.com", Identifier: "A1"}},
		Skipped:   []domain.RowIssue{{RowNum: 2, Reason: "missing name"}},
		TotalRows: 3,
	}}
	h := newTestHandler(matcher, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})

	rec := doRequest(t, h, http.MethodGet, "/matches", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp MatchesResponse
	decodeBody(t, rec, &resp)
	if len(resp.Matches) != 1 || resp.Matches[0].Identifier != "A1" {
		t.Errorf("matches = %+v", resp.Matches)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0].Reason != "missing name" {
		t.Errorf("skipped = %+v", resp.Skipped)
	}
	if resp.TotalRows != 3 {
		t.Errorf("total_rows = %d", resp.TotalRows)
	}
}

func TestRosterErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "missing file", err: roster.ErrSourceNotFound, want: http.StatusNotFound},
		{name: "bad schema", err: roster.ErrInvalidSchema, want: http.StatusUnprocessableEntity},
		{name: "other", err: errors.New("io error"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeMatcher{err: tt.err}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})
			if rec := doRequest(t, h, http.MethodGet, "/matches", ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestValidateRoster(t *testing.T) {
	matcher := &fakeMatcher{report: domain.ValidationReport{
		Valid:  []domain.ValidRow{{RowNum: 1, Name: "Ann", Email: "ann@example.com", DOB: "05-03-1990"}},
		Errors: []domain.RowIssue{{RowNum: 2, Reason: "missing email"}},
	}}
	h := newTestHandler(matcher, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})

	rec := doRequest(t, h, http.MethodGet, "/roster/validate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp ValidationResponse
	decodeBody(t, rec, &resp)
	if len(resp.Valid) != 1 || resp.Valid[0].DOB != "05-03-1990" {
		t.Errorf("valid = %+v", resp.Valid)
	}
	if len(resp.Errors) != 1 {
		t.Errorf("errors = %+v", resp.Errors)
	}
}

func TestStartDispatch(t *testing.T) {
	matcher := &fakeMatcher{result: domain.MatchResult{
		Matches: []domain.MatchRecord{{Name: "Ann", Email: "ann@example.com"}},
	}}
	disp := &fakeDispatcher{}
	h := newTestHandler(matcher, disp, &fakeState{}, &fakeTemplates{html: "<p>{{name}}</p>"})

	rec := doRequest(t, h, http.MethodPost, "/dispatch", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp DispatchResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 1 {
		t.Errorf("total = %d", resp.Total)
	}
	if disp.started != 1 {
		t.Errorf("dispatcher started %d times", disp.started)
	}
}

func TestStartDispatchNoBirthdays(t *testing.T) {
	disp := &fakeDispatcher{}
	h := newTestHandler(&fakeMatcher{result: domain.MatchResult{TotalRows: 4}}, disp, &fakeState{}, &fakeTemplates{html: "<p>x</p>"})

	rec := doRequest(t, h, http.MethodPost, "/dispatch", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp DispatchResponse
	decodeBody(t, rec, &resp)
	if resp.Message != "No birthdays today. Nothing to send." || resp.Total != 0 {
		t.Errorf("response = %+v", resp)
	}
	if disp.started != 0 {
		t.Error("dispatcher must not start with zero matches")
	}
}

func TestStartDispatchConflict(t *testing.T) {
	matcher := &fakeMatcher{result: domain.MatchResult{
		Matches: []domain.MatchRecord{{Name: "Ann", Email: "ann@example.com"}},
	}}
	disp := &fakeDispatcher{err: dispatch.ErrJobAlreadyRunning}
	h := newTestHandler(matcher, disp, &fakeState{}, &fakeTemplates{html: "<p>x</p>"})

	if rec := doRequest(t, h, http.MethodPost, "/dispatch", ""); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestDispatchStatus(t *testing.T) {
	state := &fakeState{state: domain.JobState{
		Running:  true,
		Progress: 1,
		Total:    2,
		Results:  []domain.DeliveryOutcome{{Name: "Ann", Email: "ann@example.com", Status: domain.DeliveryStatusSent}},
	}}
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, state, &fakeTemplates{})

	rec := doRequest(t, h, http.MethodGet, "/dispatch/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp StatusResponse
	decodeBody(t, rec, &resp)
	if !resp.Running || resp.Progress != 1 || resp.Total != 2 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Results) != 1 || resp.Results[0].Status != "sent" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestDispatchHistory(t *testing.T) {
	history := &fakeHistory{outcomes: []domain.DeliveryOutcome{
		{Name: "Ann", Email: "ann@example.com", Status: domain.DeliveryStatusSent},
	}}
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{}).
		WithHistory(history)

	rec := doRequest(t, h, http.MethodGet, "/dispatch/history?date=2024-06-15", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp HistoryResponse
	decodeBody(t, rec, &resp)
	if resp.Date != "2024-06-15" || len(resp.Outcomes) != 1 {
		t.Errorf("response = %+v", resp)
	}

	wantFrom := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !history.from.Equal(wantFrom) || !history.to.Equal(wantFrom.AddDate(0, 0, 1)) {
		t.Errorf("queried [%s, %s)", history.from, history.to)
	}
}

func TestDispatchHistoryBadDate(t *testing.T) {
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{}).
		WithHistory(&fakeHistory{})

	if rec := doRequest(t, h, http.MethodGet, "/dispatch/history?date=June15", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDispatchHistoryDisabled(t *testing.T) {
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})

	if rec := doRequest(t, h, http.MethodGet, "/dispatch/history", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	templates := &fakeTemplates{}
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, templates)

	rec := doRequest(t, h, http.MethodPost, "/template", `{"html":"<h1>{{name}}</h1>"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, h, http.MethodGet, "/template", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var resp TemplateResponse
	decodeBody(t, rec, &resp)
	if resp.HTML != "<h1>{{name}}</h1>" {
		t.Errorf("html = %q", resp.HTML)
	}
}

func TestTemplateRejectsBlank(t *testing.T) {
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})
	if rec := doRequest(t, h, http.MethodPost, "/template", `{"html":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTemplateRejectsInvalidJSON(t *testing.T) {
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})
	if rec := doRequest(t, h, http.MethodPost, "/template", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSettings(t *testing.T) {
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})

	rec := doRequest(t, h, http.MethodGet, "/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]json.RawMessage
	decodeBody(t, rec, &resp)
	if _, ok := resp["config"]; !ok {
		t.Error("settings missing config section")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})
	if rec := doRequest(t, h, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodDelete, "/template", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

type fakeRosterStore struct {
	mu       sync.Mutex
	report   domain.ValidationReport
	checkErr error
	saveErr  error
	saved    []byte
}

func (s *fakeRosterStore) Check(content []byte) (domain.ValidationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.checkErr
}

func (s *fakeRosterStore) Save(content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append([]byte(nil), content...)
	return nil
}

func TestUploadRoster(t *testing.T) {
	store := &fakeRosterStore{report: domain.ValidationReport{
		Valid:  []domain.ValidRow{{RowNum: 1, Name: "Ann", Email: "ann@example.com", DOB: "05-03-1990"}},
		Errors: []domain.RowIssue{{RowNum: 2, Reason: "missing name"}},
	}}
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{}).
		WithRosterStore(store)

	body := "name,email,dob\nAnn,ann@example.com,05-03-1990\n,bob@example.com,junk\n"
	rec := doRequest(t, h, http.MethodPost, "/roster", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp UploadResponse
	decodeBody(t, rec, &resp)
	if resp.Message != "Roster uploaded" {
		t.Errorf("message = %q", resp.Message)
	}
	if len(resp.Validation.Valid) != 1 || resp.Validation.Valid[0].Name != "Ann" {
		t.Errorf("valid rows = %+v", resp.Validation.Valid)
	}
	if len(resp.Validation.Errors) != 1 || resp.Validation.Errors[0].Reason != "missing name" {
		t.Errorf("row issues = %+v", resp.Validation.Errors)
	}
	if string(store.saved) != body {
		t.Errorf("saved = %q, want request body", store.saved)
	}
}

func TestUploadRosterBadSchema(t *testing.T) {
	store := &fakeRosterStore{checkErr: roster.ErrInvalidSchema}
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{}).
		WithRosterStore(store)

	rec := doRequest(t, h, http.MethodPost, "/roster", "name,phone\nAnn,555\n")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if store.saved != nil {
		t.Error("rejected upload must not be saved")
	}
}

func TestUploadRosterEmptyBody(t *testing.T) {
	store := &fakeRosterStore{}
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{}).
		WithRosterStore(store)

	if rec := doRequest(t, h, http.MethodPost, "/roster", "  \n "); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if store.saved != nil {
		t.Error("empty upload must not be saved")
	}
}

func TestUploadRosterDisabled(t *testing.T) {
	h := newTestHandler(&fakeMatcher{}, &fakeDispatcher{}, &fakeState{}, &fakeTemplates{})

	if rec := doRequest(t, h, http.MethodPost, "/roster", "name,email,dob\n"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
