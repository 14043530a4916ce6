// Package ledger is the append-only, hash-chained record of finalized
// transactions. Stores serialize appends and seal each entry against its
// predecessor; the Service adds error translation, metrics and event fan-out.
package ledger

import (
	"context"
	"log/slog"

	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
	dErrors "efrn/pkg/domain-errors"
	"efrn/pkg/requestcontext"
)

// Store persists entries. Append must assign Sequence/PrevHash/Hash
// atomically with the write (see Entry.Seal) and return the sealed entry.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	CountByStatus(ctx context.Context, employee id.EmployeeID, status models.FinalStatus) (int, error)
}

// Publisher receives every committed entry. Publish must not block.
type Publisher interface {
	Publish(ctx context.Context, entry Entry)
}

// Metrics observes ledger activity.
type Metrics interface {
	IncrementAppends(status string)
}

// Service wraps a Store with error translation and fan-out.
type Service struct {
	store     Store
	publisher Publisher
	metrics   Metrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds a ledger service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends the ledger projection of a resolved transaction and stamps
// tx with the entry's sequence. A storage failure is returned as ledger_fault
// and is never retried.
func (s *Service) Record(ctx context.Context, tx *models.Transaction) (Entry, error) {
	if !tx.FinalStatus.IsTerminal() {
		return Entry{}, dErrors.New(dErrors.CodeInvariantViolation, "only resolved transactions are recorded")
	}
	entry, err := s.store.Append(ctx, EntryFrom(tx, requestcontext.Now(ctx)))
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger append failed",
			"transaction_id", tx.ID,
			"employee", tx.Employee,
			"error", err,
		)
		return Entry{}, dErrors.Wrap(err, dErrors.CodeLedgerFault, "ledger append failed")
	}
	tx.LedgerSequence = entry.Sequence
	if s.metrics != nil {
		s.metrics.IncrementAppends(entry.Status.String())
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, entry)
	}
	return entry, nil
}

// List returns every entry in append order.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedgerFault, "ledger read failed")
	}
	return entries, nil
}

// PriorRejections counts the employee's Rejected entries.
func (s *Service) PriorRejections(ctx context.Context, employee id.EmployeeID) (int, error) {
	n, err := s.store.CountByStatus(ctx, employee, models.StatusRejected)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeLedgerFault, "ledger read failed")
	}
	return n, nil
}

// Verify recomputes the hash chain over a snapshot of the ledger.
func (s *Service) Verify(ctx context.Context) (VerifyResult, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	res := VerifyChain(entries)
	if !res.Valid {
		s.logger.ErrorContext(ctx, "ledger chain broken", "broken_at", *res.BrokenAt, "message", res.Message)
	}
	return res, nil
}
