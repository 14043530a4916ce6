// Package orchestrator exposes the three external operations of the trust
// pipeline: evaluate a new transaction, list the ledger, and override a Risk
// rejection. It owns per-employee serialization and the commit order
// pipeline, ledger, then transaction store.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"efrn/internal/ledger"
	orchmetrics "efrn/internal/orchestrator/metrics"
	"efrn/internal/override"
	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
	dErrors "efrn/pkg/domain-errors"
	"efrn/pkg/platform/keylock"
	"efrn/pkg/platform/sentinel"
	"efrn/pkg/requestcontext"
)

const tracerName = "efrn/orchestrator"

// CreateRequest is the raw input of CreateTransaction.
type CreateRequest struct {
	Employee string
	Amount   decimal.Decimal
	Currency string
	Scenario string
}

// Service is the orchestrator.
type Service struct {
	pipeline     Runner
	ledger       Ledger
	transactions TransactionStore
	overrides    Overrider
	locker       keylock.Locker
	metrics      *orchmetrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *orchmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func New(pipeline Runner, ledger Ledger, transactions TransactionStore, overrides Overrider, locker keylock.Locker, opts ...Option) *Service {
	s := &Service{
		pipeline:     pipeline,
		ledger:       ledger,
		transactions: transactions,
		overrides:    overrides,
		locker:       locker,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTransaction validates the request, runs the five agents, and appends
// the outcome to the ledger. Business rejection is a successful return with
// FinalStatus REJECTED. On a validation error nothing is created; on an agent
// or ledger fault the transaction is discarded.
func (s *Service) CreateTransaction(ctx context.Context, in CreateRequest) (_ *models.Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "orchestrator.CreateTransaction",
		trace.WithAttributes(attribute.String("employee", in.Employee), attribute.String("currency", in.Currency)))
	defer func() { endSpan(span, err) }()

	req, err := parseCreate(in)
	if err != nil {
		return nil, err
	}

	var tx *models.Transaction
	err = keylock.WithLock(ctx, s.locker, req.Employee.String(), s.logger, func(ctx context.Context) error {
		start := time.Now()
		t, err := models.NewTransaction(id.NewTransactionID(), req, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		prior, err := s.ledger.PriorRejections(ctx, req.Employee)
		if err != nil {
			return err
		}
		if err := s.pipeline.Run(ctx, t, prior); err != nil {
			s.logger.ErrorContext(ctx, "transaction evaluation aborted",
				"request_id", requestcontext.RequestID(ctx),
				"transaction_id", t.ID,
				"employee", t.Employee,
				"error", err,
			)
			return err
		}
		if _, err := s.ledger.Record(ctx, t); err != nil {
			return err
		}
		if err := s.transactions.Save(ctx, t); err != nil {
			s.logger.ErrorContext(ctx, "transaction recorded in ledger but store commit failed",
				"transaction_id", t.ID,
				"error", err,
			)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
		}
		s.metrics.ObservePipelineDuration(time.Since(start))
		tx = t
		return nil
	})
	if err != nil {
		return nil, translateLockErr(err)
	}

	s.metrics.IncrementTransaction(tx.FinalStatus)
	span.SetAttributes(
		attribute.String("transaction_id", tx.ID.String()),
		attribute.String("final_status", tx.FinalStatus.String()),
	)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"transaction_id", tx.ID,
		"employee", tx.Employee,
		"final_status", tx.FinalStatus,
	}
	if tx.TrustScore != nil {
		attrs = append(attrs, "trust_score", *tx.TrustScore)
	}
	s.logger.InfoContext(ctx, "transaction evaluated", attrs...)
	return tx, nil
}

// ListLedger returns every ledger entry in append order.
func (s *Service) ListLedger(ctx context.Context) (_ []ledger.Entry, err error) {
	ctx, span := s.tracer.Start(ctx, "orchestrator.ListLedger")
	defer func() { endSpan(span, err) }()
	return s.ledger.List(ctx)
}

// VerifyLedger recomputes the ledger hash chain.
func (s *Service) VerifyLedger(ctx context.Context) (_ ledger.VerifyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "orchestrator.VerifyLedger")
	defer func() { endSpan(span, err) }()
	return s.ledger.Verify(ctx)
}

// SubmitOverride re-evaluates the employee's most recent Risk rejection in
// the given currency.
func (s *Service) SubmitOverride(ctx context.Context, in override.Request) (_ *models.Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "orchestrator.SubmitOverride",
		trace.WithAttributes(attribute.String("employee", in.Employee), attribute.String("approver", in.Approver)))
	defer func() { endSpan(span, err) }()
	return s.overrides.Submit(ctx, in)
}

func parseCreate(in CreateRequest) (models.TransactionRequest, error) {
	employee, err := id.ParseEmployeeID(in.Employee)
	if err != nil {
		return models.TransactionRequest{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid employee")
	}
	amount, err := id.ParseAmount(in.Amount)
	if err != nil {
		return models.TransactionRequest{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid amount")
	}
	currency, err := id.ParseCurrency(in.Currency)
	if err != nil {
		return models.TransactionRequest{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid currency")
	}
	return models.TransactionRequest{
		Employee: employee,
		Amount:   amount,
		Currency: currency,
		Scenario: in.Scenario,
	}, nil
}

func translateLockErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrLockHeld):
		return dErrors.Wrap(err, dErrors.CodeConflict, "employee is busy")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if _, coded := dErrors.As(err); !coded {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled")
		}
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
