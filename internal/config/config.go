// Package config loads application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Mailer transport selectors for MAILER_TRANSPORT.
const (
	TransportSMTP    = "smtp"
	TransportElastic = "elastic"
	TransportSES     = "ses"
)

// Config holds all configuration for the mailer application.
// Values are loaded from environment variables; see printUsage() in
// cmd/mailer for the full list.
type Config struct {
	HTTPAddr string `json:"http_addr"`

	Timezone     string `json:"timezone"`
	RosterPath   string `json:"roster_path"`
	TemplatePath string `json:"template_path"`
	OutputDir    string `json:"output_dir"`
	LedgerPath   string `json:"ledger_path"`

	SendTime   string `json:"send_time"`
	AutoSend   bool   `json:"auto_send"`
	AdminEmail string `json:"admin_email,omitempty"`

	Transport         string `json:"mailer_transport"`
	SMTPHost          string `json:"smtp_host,omitempty"`
	SMTPPort          int    `json:"smtp_port,omitempty"`
	SenderEmail       string `json:"sender_email,omitempty"`
	SenderAppPassword string `json:"-"`
	ElasticAPIURL     string `json:"elastic_api_url,omitempty"`
	ElasticAPIKey     string `json:"-"`
	ElasticFrom       string `json:"elastic_from,omitempty"`
	SESFrom           string `json:"ses_from,omitempty"`

	MaxRetries         int     `json:"max_retries"`
	RateLimitPerSecond float64 `json:"rate_limit_per_second"`

	RetryBackoffUnit    time.Duration `json:"-"`
	RetryBackoffUnitStr string        `json:"retry_backoff_unit"`

	MailTimeout    time.Duration `json:"-"`
	MailTimeoutStr string        `json:"mail_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsAddr    string `json:"metrics_addr"`
	MetricsPath    string `json:"metrics_path"`

	RedisAddr   string `json:"redis_addr,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`
}

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory is merged in first when present.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Println("config: loaded .env file")
	}

	cfg := Config{
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		Timezone:               os.Getenv("TIMEZONE"),
		RosterPath:             os.Getenv("ROSTER_PATH"),
		TemplatePath:           os.Getenv("TEMPLATE_PATH"),
		OutputDir:              os.Getenv("OUTPUT_DIR"),
		LedgerPath:             os.Getenv("LEDGER_PATH"),
		SendTime:               os.Getenv("SEND_TIME"),
		AutoSend:               os.Getenv("AUTO_SEND") == "true",
		AdminEmail:             os.Getenv("ADMIN_EMAIL"),
		Transport:              os.Getenv("MAILER_TRANSPORT"),
		SMTPHost:               os.Getenv("SMTP_HOST"),
		SenderEmail:            os.Getenv("SENDER_EMAIL"),
		SenderAppPassword:      os.Getenv("SENDER_APP_PASSWORD"),
		ElasticAPIURL:          os.Getenv("ELASTIC_API_URL"),
		ElasticAPIKey:          os.Getenv("ELASTIC_API_KEY"),
		ElasticFrom:            os.Getenv("ELASTIC_FROM"),
		SESFrom:                os.Getenv("SES_FROM_EMAIL"),
		RetryBackoffUnitStr:    os.Getenv("RETRY_BACKOFF_UNIT"),
		MailTimeoutStr:         os.Getenv("MAIL_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsAddr:            os.Getenv("METRICS_ADDR"),
		MetricsPath:            os.Getenv("METRICS_PATH"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
	}

	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		if n, err := parseInt(portStr); err == nil && n > 0 {
			cfg.SMTPPort = n
		} else {
			log.Printf("config: invalid SMTP_PORT %q (must be a positive integer), using default 587", portStr)
		}
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}

	if retriesStr := os.Getenv("MAX_RETRIES"); retriesStr != "" {
		if n, err := parseInt(retriesStr); err == nil && n > 0 {
			cfg.MaxRetries = n
		} else {
			log.Printf("config: invalid MAX_RETRIES %q (must be a positive integer), using default 3", retriesStr)
		}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if rateStr := os.Getenv("RATE_LIMIT_PER_SECOND"); rateStr != "" {
		if f, err := strconv.ParseFloat(rateStr, 64); err == nil && f > 0 {
			cfg.RateLimitPerSecond = f
		} else {
			log.Printf("config: invalid RATE_LIMIT_PER_SECOND %q (must be a positive number), rate limiting disabled", rateStr)
		}
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.RosterPath == "" {
		cfg.RosterPath = "data.csv"
	}
	if cfg.TemplatePath == "" {
		cfg.TemplatePath = "template.html"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "sent_today.log"
	}
	if cfg.SendTime == "" {
		cfg.SendTime = "08:00"
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportSMTP
	}
	if cfg.RetryBackoffUnitStr == "" {
		cfg.RetryBackoffUnitStr = "1s"
	}
	if cfg.MailTimeoutStr == "" {
		cfg.MailTimeoutStr = "20s"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.RetryBackoffUnitStr); err == nil {
		cfg.RetryBackoffUnit = d
	}
	if d, err := time.ParseDuration(cfg.MailTimeoutStr); err == nil {
		cfg.MailTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}

	return cfg
}

// parseInt parses a string as a non-negative integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		HTTPAddr            string  `json:"http_addr"`
		Timezone            string  `json:"timezone"`
		RosterPath          string  `json:"roster_path"`
		TemplatePath        string  `json:"template_path"`
		OutputDir           string  `json:"output_dir"`
		LedgerPath          string  `json:"ledger_path"`
		SendTime            string  `json:"send_time"`
		AutoSend            bool    `json:"auto_send"`
		AdminEmail          string  `json:"admin_email,omitempty"`
		Transport           string  `json:"mailer_transport"`
		SMTPHost            string  `json:"smtp_host,omitempty"`
		SMTPPort            int     `json:"smtp_port,omitempty"`
		SenderEmail         string  `json:"sender_email,omitempty"`
		SenderAppPassword   string  `json:"sender_app_password,omitempty"`
		ElasticAPIURL       string  `json:"elastic_api_url,omitempty"`
		ElasticAPIKey       string  `json:"elastic_api_key,omitempty"`
		ElasticFrom         string  `json:"elastic_from,omitempty"`
		SESFrom             string  `json:"ses_from,omitempty"`
		MaxRetries          int     `json:"max_retries"`
		RateLimitPerSecond  float64 `json:"rate_limit_per_second"`
		RetryBackoffUnit    string  `json:"retry_backoff_unit"`
		MailTimeout         string  `json:"mail_timeout"`
		MetricsEnabled      bool    `json:"metrics_enabled"`
		MetricsAddr         string  `json:"metrics_addr"`
		MetricsPath         string  `json:"metrics_path"`
		RedisAddr           string  `json:"redis_addr,omitempty"`
		DatabaseURL         string  `json:"database_url,omitempty"`
		HTTPShutdownTimeout string  `json:"http_shutdown_timeout"`
	}{
		HTTPAddr:            c.HTTPAddr,
		Timezone:            c.Timezone,
		RosterPath:          c.RosterPath,
		TemplatePath:        c.TemplatePath,
		OutputDir:           c.OutputDir,
		LedgerPath:          c.LedgerPath,
		SendTime:            c.SendTime,
		AutoSend:            c.AutoSend,
		AdminEmail:          c.AdminEmail,
		Transport:           c.Transport,
		SMTPHost:            c.SMTPHost,
		SMTPPort:            c.SMTPPort,
		SenderEmail:         c.SenderEmail,
		SenderAppPassword:   maskSecret(c.SenderAppPassword),
		ElasticAPIURL:       c.ElasticAPIURL,
		ElasticAPIKey:       maskSecret(c.ElasticAPIKey),
		ElasticFrom:         c.ElasticFrom,
		SESFrom:             c.SESFrom,
		MaxRetries:          c.MaxRetries,
		RateLimitPerSecond:  c.RateLimitPerSecond,
		RetryBackoffUnit:    c.RetryBackoffUnitStr,
		MailTimeout:         c.MailTimeoutStr,
		MetricsEnabled:      c.MetricsEnabled,
		MetricsAddr:         c.MetricsAddr,
		MetricsPath:         c.MetricsPath,
		RedisAddr:           c.RedisAddr,
		DatabaseURL:         maskSecret(c.DatabaseURL),
		HTTPShutdownTimeout: c.HTTPShutdownTimeoutStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
