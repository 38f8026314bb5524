package decisionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/lattice-compute/routectl/pkg/apierr"
	"github.com/lattice-compute/routectl/pkg/contracts"
)

// PostgresStore is a durable Store backed by Postgres, used when the
// deployment needs concurrent writers across multiple router processes
// (a single FileStore assumes a single writer). Grounded on the teacher's
// ledger.PostgresLedger: same schema-bootstrap-on-Init idiom, same
// lib/pq driver, generalized from the obligation/lease schema to the
// decision-trace schema of §4.6.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-opened *sql.DB. Callers are
// responsible for the DSN and connection pool settings.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS decision_traces (
	decision_id   TEXT PRIMARY KEY,
	tenant        TEXT NOT NULL,
	ts            TIMESTAMPTZ NOT NULL,
	mode          TEXT NOT NULL,
	candidate     TEXT NOT NULL,
	finalized     BOOLEAN NOT NULL DEFAULT FALSE,
	abandoned     BOOLEAN NOT NULL DEFAULT FALSE,
	poisoned      BOOLEAN NOT NULL DEFAULT FALSE,
	reward        DOUBLE PRECISION,
	outcome       JSONB,
	payload       JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_traces_tenant ON decision_traces (tenant, ts);
CREATE INDEX IF NOT EXISTS idx_decision_traces_ts ON decision_traces (ts);
`

// Init bootstraps the schema. Safe to call repeatedly.
func (p *PostgresStore) Init(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, pgSchema)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, trace contracts.DecisionTrace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO decision_traces (decision_id, tenant, ts, mode, candidate, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = p.db.ExecContext(ctx, q,
		trace.DecisionID, trace.Tenant, trace.Timestamp, trace.Metadata.Mode, trace.Action, payload)
	if err != nil {
		if isUniqueViolation(err) {
			return errAlreadyExists(trace.DecisionID)
		}
		return apierr.Wrap(apierr.KindInternal, "failed to persist decision trace", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (contracts.DecisionTrace, error) {
	const q = `SELECT payload FROM decision_traces WHERE decision_id = $1`
	var payload []byte
	err := p.db.QueryRowContext(ctx, q, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contracts.DecisionTrace{}, errUnknown(id)
		}
		return contracts.DecisionTrace{}, apierr.Wrap(apierr.KindInternal, "failed to read decision trace", err)
	}
	var trace contracts.DecisionTrace
	if err := json.Unmarshal(payload, &trace); err != nil {
		return contracts.DecisionTrace{}, apierr.Wrap(apierr.KindCorruption, "corrupt decision trace payload", err)
	}
	return trace, nil
}

// FinalizeOutcome performs the write-once tail as a single conditional
// UPDATE guarded by "finalized = FALSE", giving the same CAS semantics as
// MemStore's mutex without needing a SELECT ... FOR UPDATE round trip.
func (p *PostgresStore) FinalizeOutcome(ctx context.Context, id string, outcome contracts.Outcome, rewardValue float64, poisoned bool) (float64, bool, error) {
	trace, err := p.Get(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if trace.Finalized {
		if trace.Reward != nil {
			return *trace.Reward, false, nil
		}
		return 0, false, nil
	}

	trace.Outcome = &outcome
	r := rewardValue
	trace.Reward = &r
	trace.Finalized = true
	trace.Poisoned = poisoned
	payload, err := json.Marshal(trace)
	if err != nil {
		return 0, false, err
	}
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return 0, false, err
	}

	const q = `
		UPDATE decision_traces
		SET finalized = TRUE, reward = $1, outcome = $2, payload = $3, poisoned = $4
		WHERE decision_id = $5 AND finalized = FALSE
	`
	res, err := p.db.ExecContext(ctx, q, rewardValue, outcomeJSON, payload, poisoned, id)
	if err != nil {
		return 0, false, apierr.Wrap(apierr.KindInternal, "failed to finalize outcome", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		// Lost the race to a concurrent finalizer: re-read the winner's value.
		fresh, err := p.Get(ctx, id)
		if err != nil {
			return 0, false, err
		}
		if fresh.Reward != nil {
			return *fresh.Reward, false, nil
		}
		return 0, false, nil
	}
	return rewardValue, true, nil
}

func (p *PostgresStore) MarkAbandoned(ctx context.Context, id string) error {
	const q = `UPDATE decision_traces SET abandoned = TRUE WHERE decision_id = $1`
	res, err := p.db.ExecContext(ctx, q, id)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "failed to mark abandoned", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errUnknown(id)
	}
	return nil
}

func (p *PostgresStore) ScanByTimeRange(ctx context.Context, from, to time.Time) ([]contracts.DecisionTrace, error) {
	const q = `
		SELECT payload FROM decision_traces
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts ASC, decision_id ASC
	`
	return p.scan(ctx, q, from, to)
}

func (p *PostgresStore) ScanByTenant(ctx context.Context, tenant string) ([]contracts.DecisionTrace, error) {
	const q = `
		SELECT payload FROM decision_traces
		WHERE tenant = $1
		ORDER BY ts ASC, decision_id ASC
	`
	return p.scan(ctx, q, tenant)
}

func (p *PostgresStore) scan(ctx context.Context, query string, args ...any) ([]contracts.DecisionTrace, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to scan decision traces", err)
	}
	defer rows.Close()

	var out []contracts.DecisionTrace
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var trace contracts.DecisionTrace
		if err := json.Unmarshal(payload, &trace); err != nil {
			return nil, apierr.Wrap(apierr.KindCorruption, "corrupt decision trace payload", err)
		}
		out = append(out, trace)
	}
	return out, rows.Err()
}

// Retention deletes finalized traces older than before, exposed only for
// explicit maintenance callers (§4.6): never invoked from the request path.
func (p *PostgresStore) Retention(ctx context.Context, before time.Time) (int, error) {
	const q = `DELETE FROM decision_traces WHERE finalized = TRUE AND ts < $1`
	res, err := p.db.ExecContext(ctx, q, before)
	if err != nil {
		return 0, apierr.Wrap(apierr.KindInternal, "failed to apply retention", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// isUniqueViolation detects a Postgres unique_violation, SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
