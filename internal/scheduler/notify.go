package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/moumitha43-ops/MAILER/internal/domain"
)

// Mailer delivers the operator summary. Matches the transport interface the
// dispatch coordinator uses, so the same mailer instance can serve both.
type Mailer interface {
	Deliver(ctx context.Context, to, subject, htmlBody string) error
}

// MailNotifier mails a human-readable run summary to the operator address.
type MailNotifier struct {
	mailer Mailer
	admin  string
}

func NewMailNotifier(mailer Mailer, admin string) *MailNotifier {
	return &MailNotifier{mailer: mailer, admin: admin}
}

func (n *MailNotifier) Notify(ctx context.Context, summary domain.RunSummary) error {
	if n.admin == "" {
		return nil
	}
	subject := "Birthday mailer: daily run summary"
	return n.mailer.Deliver(ctx, n.admin, subject, summaryBody(summary))
}

func summaryBody(summary domain.RunSummary) string {
	var b strings.Builder
	b.WriteString("<h3>Daily birthday run</h3>")
	fmt.Fprintf(&b, "<p>Recipients: %d</p>", summary.Total)
	writeSection(&b, "Sent", summary.Sent)
	writeSection(&b, "Failed", summary.Failed)
	writeSection(&b, "Skipped", summary.Skipped)
	return b.String()
}

func writeSection(b *strings.Builder, title string, outcomes []domain.DeliveryOutcome) {
	fmt.Fprintf(b, "<p><b>%s (%d)</b>", title, len(outcomes))
	if len(outcomes) == 0 {
		b.WriteString(": none</p>")
		return
	}
	b.WriteString("</p><ul>")
	for _, o := range outcomes {
		fmt.Fprintf(b, "<li>%s &lt;%s&gt;", o.Name, o.Email)
		if o.Error != "" {
			fmt.Fprintf(b, " (%s)", o.Error)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
}
