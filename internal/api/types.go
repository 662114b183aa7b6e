package api

import "github.com/moumitha43-ops/MAILER/internal/domain"

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// MatchRecordResponse is one matched recipient. The rollnumber key mirrors
// the roster column it is read from.
type MatchRecordResponse struct {
	RowNum     int    `json:"rownum"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Identifier string `json:"rollnumber,omitempty"`
}

// RowIssueResponse is one skipped roster row with its reason.
type RowIssueResponse struct {
	RowNum int    `json:"rownum"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

// MatchesResponse is the GET /matches payload.
type MatchesResponse struct {
	Matches   []MatchRecordResponse `json:"matches"`
	Skipped   []RowIssueResponse    `json:"skipped"`
	TotalRows int                   `json:"total_rows"`
}

// ValidRowResponse is one well-formed roster row.
type ValidRowResponse struct {
	RowNum     int    `json:"rownum"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	DOB        string `json:"dob"`
	Identifier string `json:"rollnumber,omitempty"`
}

// ValidationResponse is the GET /roster/validate payload.
type ValidationResponse struct {
	Valid  []ValidRowResponse `json:"valid"`
	Errors []RowIssueResponse `json:"errors"`
}

// UploadResponse confirms a roster upload and reports the pre-flight
// validation of the installed document.
type UploadResponse struct {
	Message    string             `json:"message"`
	Validation ValidationResponse `json:"validation"`
}

// DispatchResponse is the POST /dispatch payload.
type DispatchResponse struct {
	Message string `json:"message"`
	Total   int    `json:"total"`
}

// OutcomeResponse is one per-recipient delivery result.
type OutcomeResponse struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse is the GET /dispatch/status payload.
type StatusResponse struct {
	Running  bool              `json:"running"`
	Progress int               `json:"progress"`
	Total    int               `json:"total"`
	Results  []OutcomeResponse `json:"results"`
	Error    string            `json:"error,omitempty"`
}

// HistoryResponse is the GET /dispatch/history payload.
type HistoryResponse struct {
	Date     string            `json:"date"`
	Outcomes []OutcomeResponse `json:"outcomes"`
}

// TemplateRequest is the POST /template body.
type TemplateRequest struct {
	HTML string `json:"html"`
}

// TemplateResponse is the GET /template payload.
type TemplateResponse struct {
	HTML string `json:"html"`
}

func toOutcomeResponses(outcomes []domain.DeliveryOutcome) []OutcomeResponse {
	result := make([]OutcomeResponse, len(outcomes))
	for i, o := range outcomes {
		result[i] = OutcomeResponse{
			Name:   o.Name,
			Email:  o.Email,
			Status: string(o.Status),
			Error:  o.Error,
		}
	}
	return result
}

func toValidationResponse(report domain.ValidationReport) ValidationResponse {
	resp := ValidationResponse{
		Valid:  make([]ValidRowResponse, len(report.Valid)),
		Errors: toIssueResponses(report.Errors),
	}
	for i, row := range report.Valid {
		resp.Valid[i] = ValidRowResponse{
			RowNum:     row.RowNum,
			Name:       row.Name,
			Email:      row.Email,
			DOB:        row.DOB,
			Identifier: row.Identifier,
		}
	}
	return resp
}

func toIssueResponses(issues []domain.RowIssue) []RowIssueResponse {
	result := make([]RowIssueResponse, len(issues))
	for i, issue := range issues {
		result[i] = RowIssueResponse{
			RowNum: issue.RowNum,
			Name:   issue.Name,
			Email:  issue.Email,
			Reason: issue.Reason,
		}
	}
	return result
}
