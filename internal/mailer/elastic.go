package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultElasticAPIURL is the ElasticEmail v4 send endpoint.
const DefaultElasticAPIURL = "https://api.elasticemail.com/v4/emails"

const defaultElasticTimeout = 20 * time.Second

// ElasticMailer delivers through the ElasticEmail HTTP API.
type ElasticMailer struct {
	client   *http.Client
	apiURL   string
	apiKey   string
	from     string
	fromName string
	timeout  time.Duration
}

func NewElasticMailer(apiURL, apiKey, from string) *ElasticMailer {
	if apiURL == "" {
		apiURL = DefaultElasticAPIURL
	}
	return &ElasticMailer{
		client:   &http.Client{},
		apiURL:   apiURL,
		apiKey:   apiKey,
		from:     from,
		fromName: "Birthday Bot",
		timeout:  defaultElasticTimeout,
	}
}

// WithTimeout overrides the per-request timeout.
func (m *ElasticMailer) WithTimeout(d time.Duration) *ElasticMailer {
	if d > 0 {
		m.timeout = d
	}
	return m
}

type elasticAddress struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type elasticBodyPart struct {
	ContentType string `json:"ContentType"`
	Content     string `json:"Content"`
}

type elasticContent struct {
	From    elasticAddress    `json:"From"`
	Subject string            `json:"Subject"`
	Body    []elasticBodyPart `json:"Body"`
}

type elasticRecipients struct {
	To []string `json:"To"`
}

type elasticPayload struct {
	Recipients elasticRecipients `json:"Recipients"`
	Content    elasticContent    `json:"Content"`
}

func (m *ElasticMailer) Deliver(ctx context.Context, to, subject, htmlBody string) error {
	payload := elasticPayload{
		Recipients: elasticRecipients{To: []string{to}},
		Content: elasticContent{
			From:    elasticAddress{Email: m.from, Name: m.fromName},
			Subject: subject,
			Body: []elasticBodyPart{
				{ContentType: "HTML", Content: htmlBody},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ElasticEmail-ApiKey", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 202 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("elasticemail: %d | %s", resp.StatusCode, string(detail))
	}
	return nil
}
