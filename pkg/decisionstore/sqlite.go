package decisionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lattice-compute/routectl/pkg/apierr"
	"github.com/lattice-compute/routectl/pkg/contracts"
)

// SQLiteStore is the single-node default durable backend: no external
// database to stand up, but still crash-safe across restarts, unlike
// MemStore. Grounded on the teacher's store.SQLiteReceiptStore — same
// migrate-on-construct idiom and pure-Go modernc.org/sqlite driver, carried
// over to the decision-trace schema of §4.6.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-opened *sql.DB (typically
// sql.Open("sqlite", path)) and bootstraps the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS decision_traces (
		decision_id TEXT PRIMARY KEY,
		tenant      TEXT NOT NULL,
		ts          DATETIME NOT NULL,
		finalized   INTEGER NOT NULL DEFAULT 0,
		abandoned   INTEGER NOT NULL DEFAULT 0,
		poisoned    INTEGER NOT NULL DEFAULT 0,
		reward      REAL,
		payload     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decision_traces_tenant ON decision_traces (tenant, ts);
	CREATE INDEX IF NOT EXISTS idx_decision_traces_ts ON decision_traces (ts);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, trace contracts.DecisionTrace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return err
	}

	const q = `INSERT INTO decision_traces (decision_id, tenant, ts, payload) VALUES (?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q, trace.DecisionID, trace.Tenant, trace.Timestamp.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return errAlreadyExists(trace.DecisionID)
		}
		return apierr.Wrap(apierr.KindInternal, "failed to persist decision trace", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (contracts.DecisionTrace, error) {
	const q = `SELECT payload FROM decision_traces WHERE decision_id = ?`
	var payload string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contracts.DecisionTrace{}, errUnknown(id)
		}
		return contracts.DecisionTrace{}, apierr.Wrap(apierr.KindInternal, "failed to read decision trace", err)
	}
	var trace contracts.DecisionTrace
	if err := json.Unmarshal([]byte(payload), &trace); err != nil {
		return contracts.DecisionTrace{}, apierr.Wrap(apierr.KindCorruption, "corrupt decision trace payload", err)
	}
	return trace, nil
}

// FinalizeOutcome mirrors PostgresStore's conditional-UPDATE CAS: the
// WHERE finalized = 0 clause is the single-writer guarantee, enforced by
// SQLite's own serialized-writer model rather than row locking.
func (s *SQLiteStore) FinalizeOutcome(ctx context.Context, id string, outcome contracts.Outcome, rewardValue float64, poisoned bool) (float64, bool, error) {
	trace, err := s.Get(ctx, id)
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

	const q = `UPDATE decision_traces SET finalized = 1, reward = ?, payload = ?, poisoned = ? WHERE decision_id = ? AND finalized = 0`
	res, err := s.db.ExecContext(ctx, q, rewardValue, payload, poisoned, id)
	if err != nil {
		return 0, false, apierr.Wrap(apierr.KindInternal, "failed to finalize outcome", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		fresh, err := s.Get(ctx, id)
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

func (s *SQLiteStore) MarkAbandoned(ctx context.Context, id string) error {
	const q = `UPDATE decision_traces SET abandoned = 1 WHERE decision_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
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

func (s *SQLiteStore) ScanByTimeRange(ctx context.Context, from, to time.Time) ([]contracts.DecisionTrace, error) {
	const q = `
		SELECT payload FROM decision_traces
		WHERE ts >= ? AND ts < ?
		ORDER BY ts ASC, decision_id ASC
	`
	return s.scan(ctx, q, from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
}

func (s *SQLiteStore) ScanByTenant(ctx context.Context, tenant string) ([]contracts.DecisionTrace, error) {
	const q = `
		SELECT payload FROM decision_traces
		WHERE tenant = ?
		ORDER BY ts ASC, decision_id ASC
	`
	return s.scan(ctx, q, tenant)
}

func (s *SQLiteStore) scan(ctx context.Context, query string, args ...any) ([]contracts.DecisionTrace, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to scan decision traces", err)
	}
	defer rows.Close()

	var out []contracts.DecisionTrace
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var trace contracts.DecisionTrace
		if err := json.Unmarshal([]byte(payload), &trace); err != nil {
			return nil, apierr.Wrap(apierr.KindCorruption, "corrupt decision trace payload", err)
		}
		out = append(out, trace)
	}
	return out, rows.Err()
}

// Retention deletes finalized traces older than before, exposed only for
// explicit maintenance callers (§4.6): never invoked from the request path.
func (s *SQLiteStore) Retention(ctx context.Context, before time.Time) (int, error) {
	const q = `DELETE FROM decision_traces WHERE finalized = 1 AND ts < ?`
	res, err := s.db.ExecContext(ctx, q, before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, apierr.Wrap(apierr.KindInternal, "failed to apply retention", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func isSQLiteUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
