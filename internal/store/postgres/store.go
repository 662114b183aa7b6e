// Package postgres persists the delivery history: one row per transport
// attempt and one row per final per-recipient outcome.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moumitha43-ops/MAILER/internal/dispatch"
	"github.com/moumitha43-ops/MAILER/internal/domain"
)

// Store implements dispatch.History using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a store around an open database handle. The caller owns the
// handle and is responsible for closing it.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the history tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertDeliveryAttempt records a single transport attempt.
func (s *Store) InsertDeliveryAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error {
	_, err := s.db.ExecContext(ctx, queryInsertDeliveryAttempt,
		attempt.ID,
		attempt.RunID,
		attempt.Email,
		attempt.Attempt,
		attempt.Error,
		attempt.StartedAt,
		attempt.FinishedAt,
	)
	return err
}

// InsertDeliveryOutcome records the final per-recipient result of a run.
func (s *Store) InsertDeliveryOutcome(ctx context.Context, runID uuid.UUID, outcome domain.DeliveryOutcome) error {
	_, err := s.db.ExecContext(ctx, queryInsertDeliveryOutcome,
		uuid.New(),
		runID,
		outcome.Name,
		outcome.Email,
		string(outcome.Status),
		outcome.Error,
	)
	return err
}

// ListOutcomes returns the outcomes recorded in [from, to), oldest first.
func (s *Store) ListOutcomes(ctx context.Context, from, to time.Time) ([]domain.DeliveryOutcome, error) {
	rows, err := s.db.QueryContext(ctx, queryListOutcomes, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DeliveryOutcome
	for rows.Next() {
		var out domain.DeliveryOutcome
		var status string
		if err := rows.Scan(&out.Name, &out.Email, &status, &out.Error); err != nil {
			return nil, err
		}
		out.Status = domain.DeliveryStatus(status)
		result = append(result, out)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Ping verifies the database connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ dispatch.History = (*Store)(nil)
