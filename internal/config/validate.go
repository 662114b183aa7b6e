package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, ValidationError{
			Field:   "TIMEZONE",
			Message: fmt.Sprintf("unknown timezone %q", cfg.Timezone),
		})
	}

	if _, err := time.Parse("15:04", cfg.SendTime); err != nil {
		errs = append(errs, ValidationError{
			Field:   "SEND_TIME",
			Message: fmt.Sprintf("must be HH:MM, got %q", cfg.SendTime),
		})
	}

	if cfg.RosterPath == "" {
		errs = append(errs, ValidationError{
			Field:   "ROSTER_PATH",
			Message: "required",
		})
	}

	switch cfg.Transport {
	case TransportSMTP:
		if cfg.SMTPHost == "" {
			errs = append(errs, ValidationError{Field: "SMTP_HOST", Message: "required for smtp transport"})
		}
		if cfg.SenderEmail == "" {
			errs = append(errs, ValidationError{Field: "SENDER_EMAIL", Message: "required for smtp transport"})
		}
		if cfg.SenderAppPassword == "" {
			errs = append(errs, ValidationError{Field: "SENDER_APP_PASSWORD", Message: "required for smtp transport"})
		}
	case TransportElastic:
		if cfg.ElasticAPIKey == "" {
			errs = append(errs, ValidationError{Field: "ELASTIC_API_KEY", Message: "required for elastic transport"})
		}
		if cfg.ElasticFrom == "" {
			errs = append(errs, ValidationError{Field: "ELASTIC_FROM", Message: "required for elastic transport"})
		}
	case TransportSES:
		if cfg.SESFrom == "" {
			errs = append(errs, ValidationError{Field: "SES_FROM_EMAIL", Message: "required for ses transport"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "MAILER_TRANSPORT",
			Message: fmt.Sprintf("must be 'smtp', 'elastic' or 'ses', got %q", cfg.Transport),
		})
	}

	if cfg.RetryBackoffUnitStr != "" {
		if d, err := time.ParseDuration(cfg.RetryBackoffUnitStr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "RETRY_BACKOFF_UNIT",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "RETRY_BACKOFF_UNIT",
				Message: "must be positive",
			})
		}
	}

	if cfg.MailTimeoutStr != "" {
		if d, err := time.ParseDuration(cfg.MailTimeoutStr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "MAIL_TIMEOUT",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "MAIL_TIMEOUT",
				Message: "must be positive",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
