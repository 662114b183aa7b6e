// Package api exposes the HTTP control surface: roster inspection, manual
// dispatch, run status polling, history, template management and settings.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/moumitha43-ops/MAILER/internal/dispatch"
	"github.com/moumitha43-ops/MAILER/internal/domain"
	"github.com/moumitha43-ops/MAILER/internal/render"
	"github.com/moumitha43-ops/MAILER/internal/roster"
)

// MatchService reads the configured roster and classifies its rows.
type MatchService interface {
	Match() (domain.MatchResult, error)
	Validate() (domain.ValidationReport, error)
}

// Dispatcher starts an asynchronous dispatch run.
type Dispatcher interface {
	Start(matches []domain.MatchRecord, templateHTML string) (<-chan domain.RunSummary, error)
}

// StateSource is polled by GET /dispatch/status.
type StateSource interface {
	Snapshot() domain.JobState
}

// TemplateStore loads and replaces the shared card template.
type TemplateStore interface {
	Load() (string, error)
	Save(html string) error
}

// RosterStore checks and installs uploaded roster documents.
type RosterStore interface {
	Check(content []byte) (domain.ValidationReport, error)
	Save(content []byte) error
}

// HistoryStore serves GET /dispatch/history. Optional.
type HistoryStore interface {
	ListOutcomes(ctx context.Context, from, to time.Time) ([]domain.DeliveryOutcome, error)
}

// NextRunner reports the next scheduled daily pass. Optional.
type NextRunner interface {
	NextRun() (time.Time, bool)
}

// SettingsSource renders the running configuration with secrets masked.
type SettingsSource interface {
	MaskedJSON() ([]byte, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	matcher   MatchService
	disp      Dispatcher
	state     StateSource
	templates TemplateStore
	settings  SettingsSource
	loc       *time.Location

	rosters RosterStore  // optional
	history HistoryStore // optional
	sched   NextRunner   // optional
	db      HealthChecker
	clock   func() time.Time
}

func NewHandler(matcher MatchService, disp Dispatcher, state StateSource, templates TemplateStore, settings SettingsSource, loc *time.Location) *Handler {
	return &Handler{
		matcher:   matcher,
		disp:      disp,
		state:     state,
		templates: templates,
		settings:  settings,
		loc:       loc,
		clock:     time.Now,
	}
}

// WithRosterStore enables the POST /roster upload endpoint.
func (h *Handler) WithRosterStore(rosters RosterStore) *Handler {
	h.rosters = rosters
	return h
}

// WithHistory enables the /dispatch/history endpoint.
func (h *Handler) WithHistory(history HistoryStore) *Handler {
	h.history = history
	return h
}

// WithScheduler adds the next scheduled run to /settings.
func (h *Handler) WithScheduler(sched NextRunner) *Handler {
	h.sched = sched
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithClock overrides the time source, for tests.
func (h *Handler) WithClock(clock func() time.Time) *Handler {
	h.clock = clock
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/roster" && r.Method == http.MethodPost:
		h.uploadRoster(w, r)

	case path == "/roster/validate" && r.Method == http.MethodGet:
		h.validateRoster(w, r)

	case path == "/matches" && r.Method == http.MethodGet:
		h.listMatches(w, r)

	case path == "/dispatch" && r.Method == http.MethodPost:
		h.startDispatch(w, r)

	case path == "/dispatch/status" && r.Method == http.MethodGet:
		h.dispatchStatus(w, r)

	case path == "/dispatch/history" && r.Method == http.MethodGet:
		h.dispatchHistory(w, r)

	case path == "/template" && r.Method == http.MethodGet:
		h.getTemplate(w, r)

	case path == "/template" && r.Method == http.MethodPost:
		h.putTemplate(w, r)

	case path == "/settings" && r.Method == http.MethodGet:
		h.getSettings(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) validateRoster(w http.ResponseWriter, r *http.Request) {
	report, err := h.matcher.Validate()
	if err != nil {
		writeRosterError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toValidationResponse(report))
}

// uploadRoster accepts a raw CSV document, validates it in memory, and
// installs it as the active roster. A document with a bad header is rejected
// without replacing the installed file; per-row issues are reported but do
// not block the install.
func (h *Handler) uploadRoster(w http.ResponseWriter, r *http.Request) {
	if h.rosters == nil {
		writeError(w, http.StatusServiceUnavailable, "roster store not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	content, err := io.ReadAll(r.Body)
	if err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(bytes.TrimSpace(content)) == 0 {
		writeError(w, http.StatusBadRequest, "roster must not be empty")
		return
	}

	report, err := h.rosters.Check(content)
	if err != nil {
		writeRosterError(w, err)
		return
	}

	if err := h.rosters.Save(content); err != nil {
		log.Printf("api: roster save error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save roster")
		return
	}
	log.Printf("api: roster uploaded bytes=%d valid=%d errors=%d", len(content), len(report.Valid), len(report.Errors))

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:    "Roster uploaded",
		Validation: toValidationResponse(report),
	})
}

func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request) {
	result, err := h.matcher.Match()
	if err != nil {
		writeRosterError(w, err)
		return
	}

	resp := MatchesResponse{
		Matches:   make([]MatchRecordResponse, len(result.Matches)),
		Skipped:   toIssueResponses(result.Skipped),
		TotalRows: result.TotalRows,
	}
	for i, m := range result.Matches {
		resp.Matches[i] = MatchRecordResponse{
			RowNum:     m.RowNum,
			Name:       m.Name,
			Email:      m.Email,
			Identifier: m.Identifier,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) startDispatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.matcher.Match()
	if err != nil {
		writeRosterError(w, err)
		return
	}

	if len(result.Matches) == 0 {
		writeJSON(w, http.StatusOK, DispatchResponse{
			Message: "No birthdays today. Nothing to send.",
			Total:   0,
		})
		return
	}

	tmpl, err := h.templates.Load()
	if err != nil {
		log.Printf("api: template load error: %v", err)
		writeError(w, http.StatusInternalServerError, "template not available")
		return
	}

	if _, err := h.disp.Start(result.Matches, tmpl); err != nil {
		switch {
		case errors.Is(err, dispatch.ErrJobAlreadyRunning):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, dispatch.ErrMailerNotConfigured), errors.Is(err, dispatch.ErrEmptyTemplate):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			log.Printf("api: dispatch start error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to start dispatch")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, DispatchResponse{
		Message: "Dispatch started",
		Total:   len(result.Matches),
	})
}

func (h *Handler) dispatchStatus(w http.ResponseWriter, r *http.Request) {
	state := h.state.Snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		Running:  state.Running,
		Progress: state.Progress,
		Total:    state.Total,
		Results:  toOutcomeResponses(state.Results),
		Error:    state.Error,
	})
}

func (h *Handler) dispatchHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	day, from, to, err := parseHistoryDate(r.URL.Query().Get("date"), h.loc, h.clock())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcomes, err := h.history.ListOutcomes(r.Context(), from, to)
	if err != nil {
		log.Printf("api: history query error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Date:     day,
		Outcomes: toOutcomeResponses(outcomes),
	})
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	html, err := h.templates.Load()
	if err != nil {
		if errors.Is(err, render.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "no template uploaded yet")
			return
		}
		log.Printf("api: template load error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return
	}
	writeJSON(w, http.StatusOK, TemplateResponse{HTML: html})
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) putTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateTemplateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.templates.Save(req.HTML); err != nil {
		log.Printf("api: template save error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save template")
		return
	}

	writeJSON(w, http.StatusOK, TemplateResponse{HTML: req.HTML})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	masked, err := h.settings.MaskedJSON()
	if err != nil {
		log.Printf("api: settings encode error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to render settings")
		return
	}

	resp := map[string]any{
		"config": json.RawMessage(masked),
	}
	if h.sched != nil {
		if next, ok := h.sched.NextRun(); ok {
			resp["next_run"] = next.Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeRosterError maps roster read failures to HTTP statuses.
func writeRosterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, roster.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, roster.ErrInvalidSchema):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("api: roster read error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read roster")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
