package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS delivery_attempts (
    id          UUID PRIMARY KEY,
    run_id      UUID NOT NULL,
    email       TEXT NOT NULL,
    attempt     INT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delivery_attempts_run_id
    ON delivery_attempts (run_id);

CREATE TABLE IF NOT EXISTS delivery_outcomes (
    id          UUID PRIMARY KEY,
    run_id      UUID NOT NULL,
    name        TEXT NOT NULL,
    email       TEXT NOT NULL,
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_delivery_outcomes_recorded_at
    ON delivery_outcomes (recorded_at);
`

const queryInsertDeliveryAttempt = `
INSERT INTO delivery_attempts (id, run_id, email, attempt, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const queryInsertDeliveryOutcome = `
INSERT INTO delivery_outcomes (id, run_id, name, email, status, error)
VALUES ($1, $2, $3, $4, $5, $6)
`

const queryListOutcomes = `
SELECT name, email, status, error
FROM delivery_outcomes
WHERE recorded_at >= $1 AND recorded_at < $2
ORDER BY recorded_at ASC
`
