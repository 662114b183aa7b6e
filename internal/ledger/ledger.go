// Package ledger implements the same-day duplicate-send guard: an
// append-only file of "YYYY-MM-DD|email" lines.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"
)

// FileLedger is consulted, never rewritten in place. Entries from prior days
// are harmless because lookups always filter by today's date; a crash after
// MarkSent can produce an extra entry, never a lost one.
type FileLedger struct {
	path  string
	loc   *time.Location
	clock func() time.Time

	mu sync.Mutex
}

func NewFileLedger(path string, loc *time.Location) *FileLedger {
	return &FileLedger{path: path, loc: loc, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (l *FileLedger) WithClock(clock func() time.Time) *FileLedger {
	l.clock = clock
	return l
}

func (l *FileLedger) today() string {
	return l.clock().In(l.loc).Format("2006-01-02")
}

// AlreadySent reports whether email was marked sent today. The email match
// is exact and case-sensitive; malformed lines are ignored.
func (l *FileLedger) AlreadySent(email string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	today := l.today()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), "|")
		if len(parts) == 2 && parts[0] == today && parts[1] == email {
			return true, nil
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("scan ledger: %w", err)
	}
	return false, nil
}

// MarkSent appends a (today, email) entry.
func (l *FileLedger) MarkSent(email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s|%s\n", l.today(), email); err != nil {
		f.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	return f.Close()
}
