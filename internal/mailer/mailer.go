// Package mailer provides the delivery transports behind the dispatch
// coordinator's Mailer capability. Variants are selected by configuration;
// the coordinator is written against the interface only.
package mailer

import "context"

// Mailer delivers one rendered notification. Errors are treated as
// transient by contract: the dispatch coordinator retries them with
// bounded exponential backoff.
type Mailer interface {
	Deliver(ctx context.Context, to, subject, htmlBody string) error
}
