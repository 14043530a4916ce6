package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"efrn/internal/ledger"
	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
	txcontext "efrn/pkg/platform/tx"
)

// appendLockKey is the advisory lock that serializes ledger appends across
// every process sharing the database.
const appendLockKey int64 = 0x4546524e // "EFRN"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		sequence       BIGINT PRIMARY KEY,
		timestamp      TIMESTAMPTZ NOT NULL,
		transaction_id TEXT NOT NULL,
		employee       TEXT NOT NULL,
		amount         NUMERIC NOT NULL,
		currency       TEXT NOT NULL,
		status         TEXT NOT NULL,
		reason         TEXT NOT NULL DEFAULT '',
		prev_hash      TEXT NOT NULL,
		hash           TEXT NOT NULL UNIQUE
	)`,
	`ALTER TABLE ledger_entries ADD COLUMN IF NOT EXISTS evidence JSONB NOT NULL DEFAULT '[]'`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_employee_status_idx
		ON ledger_entries (employee, status)`,
}

// evidenceRecord is the JSONB form of one agent verdict.
type evidenceRecord struct {
	Agent  string            `json:"agent"`
	Status string            `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Meta   map[string]string `json:"meta,omitempty"`
}

func encodeEvidence(evidence []ledger.Evidence) ([]byte, error) {
	recs := make([]evidenceRecord, len(evidence))
	for i, ev := range evidence {
		recs[i] = evidenceRecord{Agent: ev.Agent.String(), Status: ev.Status.String(), Detail: ev.Detail, Meta: ev.Meta}
	}
	return json.Marshal(recs)
}

func decodeEvidence(data []byte) ([]ledger.Evidence, error) {
	var recs []evidenceRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	out := make([]ledger.Evidence, len(recs))
	for i, r := range recs {
		out[i] = ledger.Evidence{
			Agent:  models.Agent(r.Agent),
			Status: models.StepStatus(r.Status),
			Detail: r.Detail,
			Meta:   r.Meta,
		}
	}
	return out, nil
}

// Store is a postgres-backed ledger. Appends take a transaction-scoped
// advisory lock, read the chain head, and insert the sealed entry in one
// transaction.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate creates the ledger table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ledger schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	evidence, err := encodeEvidence(entry.Evidence)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("encode ledger evidence: %w", err)
	}
	var sealed ledger.Entry
	err = txcontext.RunInTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return fmt.Errorf("acquire ledger append lock: %w", err)
		}

		var (
			lastSeq  int64
			prevHash = ledger.GenesisHash
		)
		err := tx.QueryRowContext(ctx,
			`SELECT sequence, hash FROM ledger_entries ORDER BY sequence DESC LIMIT 1`,
		).Scan(&lastSeq, &prevHash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read ledger head: %w", err)
		}

		sealed = entry.Seal(lastSeq+1, prevHash)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (
				sequence, timestamp, transaction_id, employee, amount,
				currency, status, reason, evidence, prev_hash, hash
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			sealed.Sequence,
			sealed.Timestamp,
			sealed.TransactionID.String(),
			sealed.Employee.String(),
			sealed.Amount,
			sealed.Currency.String(),
			sealed.Status.String(),
			sealed.Reason,
			evidence,
			sealed.PrevHash,
			sealed.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	return sealed, nil
}

func (s *Store) List(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT sequence, timestamp, transaction_id, employee, amount,
			   currency, status, reason, evidence, prev_hash, hash
		FROM ledger_entries
		ORDER BY sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e                                ledger.Entry
			txID, employee, currency, status string
			evidence                         []byte
		)
		if err := rows.Scan(
			&e.Sequence,
			&e.Timestamp,
			&txID,
			&employee,
			&e.Amount,
			&currency,
			&status,
			&e.Reason,
			&evidence,
			&e.PrevHash,
			&e.Hash,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		e.TransactionID = id.TransactionID(txID)
		e.Employee = id.EmployeeID(employee)
		e.Currency = id.Currency(currency)
		e.Status = models.FinalStatus(status)
		if e.Evidence, err = decodeEvidence(evidence); err != nil {
			return nil, fmt.Errorf("decode ledger evidence: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

func (s *Store) CountByStatus(ctx context.Context, employee id.EmployeeID, status models.FinalStatus) (int, error) {
	var n int
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE employee = $1 AND status = $2`,
		employee.String(), status.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return n, nil
}
