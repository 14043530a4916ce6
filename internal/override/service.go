// Package override lets an authorized approver re-open a Risk rejection. The
// original steps are kept; an OverrideRisk marker is appended and the agents
// after Risk run again.
package override

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"efrn/internal/agents"
	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
	dErrors "efrn/pkg/domain-errors"
	"efrn/pkg/platform/keylock"
	"efrn/pkg/platform/sentinel"
	"efrn/pkg/requestcontext"
)

// DefaultApprover is the approver role accepted when none is configured.
const DefaultApprover id.ApproverID = "RISK_OFFICER"

// Request is the raw override input. Fields are validated in precondition
// order by Submit.
type Request struct {
	Employee      string
	Approver      string
	Justification string
	Currency      string
}

// Service applies overrides.
type Service struct {
	transactions TransactionStore
	ledger       Ledger
	pipeline     Resumer
	locker       keylock.Locker
	approvers    map[id.ApproverID]bool
	metrics      Metrics
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithApprovers replaces the approver allow-list.
func WithApprovers(approvers ...id.ApproverID) Option {
	return func(s *Service) {
		if len(approvers) == 0 {
			return
		}
		s.approvers = make(map[id.ApproverID]bool, len(approvers))
		for _, a := range approvers {
			s.approvers[a] = true
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(transactions TransactionStore, ledger Ledger, pipeline Resumer, locker keylock.Locker, opts ...Option) *Service {
	s := &Service{
		transactions: transactions,
		ledger:       ledger,
		pipeline:     pipeline,
		locker:       locker,
		approvers:    map[id.ApproverID]bool{DefaultApprover: true},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit overrides the employee's most recent Risk-rejected transaction in
// the given currency. On any error nothing is appended to the ledger and the
// stored transaction is unchanged.
func (s *Service) Submit(ctx context.Context, in Request) (*models.Transaction, error) {
	tx, err := s.submit(ctx, in)
	s.observe(err, tx)
	return tx, err
}

func (s *Service) submit(ctx context.Context, in Request) (*models.Transaction, error) {
	req, err := s.parse(ctx, in)
	if err != nil {
		return nil, err
	}

	var result *models.Transaction
	err = keylock.WithLock(ctx, s.locker, req.Employee.String(), s.logger, func(ctx context.Context) error {
		current, err := s.target(ctx, req)
		if err != nil {
			return err
		}

		prior, err := s.ledger.PriorRejections(ctx, req.Employee)
		if err != nil {
			return err
		}

		work := current.Clone()
		s.pipeline.RecordStep(ctx, work, models.AgentOverrideRisk, agents.Result{
			Status: models.StepOverridden,
			Detail: req.Justification,
			Meta:   map[string]string{"approver": req.Approver.String()},
		})
		reason := "overridden by " + req.Approver.String() + ": " + req.Justification
		if err := s.pipeline.Resume(ctx, work, prior, reason); err != nil {
			return err
		}

		if _, err := s.ledger.Record(ctx, work); err != nil {
			return err
		}
		if err := s.transactions.Save(ctx, work); err != nil {
			s.logger.ErrorContext(ctx, "override recorded in ledger but transaction store commit failed",
				"transaction_id", work.ID,
				"employee", work.Employee,
				"error", err,
			)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
		}
		result = work
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrLockHeld) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "employee is busy")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "override cancelled")
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "override applied",
		"transaction_id", result.ID,
		"employee", result.Employee,
		"approver", req.Approver,
		"final_status", result.FinalStatus,
	)
	return result, nil
}

// target finds the employee's most recent unresolved rejection in the
// requested currency. Without one, the latest transaction decides between
// not_overridable (it exists but is cleared or already overridden) and
// not_found.
func (s *Service) target(ctx context.Context, req models.OverrideRequest) (*models.Transaction, error) {
	current, err := s.transactions.FindLatestRejected(ctx, req.Employee, req.Currency)
	if err == nil {
		if err := checkOverridable(current); err != nil {
			return nil, err
		}
		return current, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, storeError(err)
	}

	latest, err := s.transactions.FindLatest(ctx, req.Employee, req.Currency)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no transaction for employee in "+req.Currency.String())
		}
		return nil, storeError(err)
	}
	if err := checkOverridable(latest); err != nil {
		return nil, err
	}
	return nil, dErrors.New(dErrors.CodeNotOverridable, "no rejected transaction awaiting override")
}

func storeError(err error) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transaction store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
}

// parse checks the stateless preconditions in order: justification,
// approver, then employee and currency.
func (s *Service) parse(ctx context.Context, in Request) (models.OverrideRequest, error) {
	justification := strings.TrimSpace(in.Justification)
	if justification == "" {
		return models.OverrideRequest{}, dErrors.New(dErrors.CodeInvalidJustification, "justification is required")
	}

	approver, err := id.ParseApproverID(in.Approver)
	if err != nil || !s.approvers[approver] {
		return models.OverrideRequest{}, dErrors.New(dErrors.CodeUnauthorized, "approver is not authorized to override")
	}
	if verified := requestcontext.Approver(ctx); verified != "" && verified != approver {
		return models.OverrideRequest{}, dErrors.New(dErrors.CodeUnauthorized, "approver does not match bearer token")
	}

	employee, err := id.ParseEmployeeID(in.Employee)
	if err != nil {
		return models.OverrideRequest{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid employee")
	}
	currency, err := id.ParseCurrency(in.Currency)
	if err != nil {
		return models.OverrideRequest{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid currency")
	}

	return models.OverrideRequest{
		Employee:      employee,
		Approver:      approver,
		Justification: justification,
		Currency:      currency,
	}, nil
}

func checkOverridable(tx *models.Transaction) error {
	if tx.FinalStatus != models.StatusRejected {
		return dErrors.New(dErrors.CodeNotOverridable, "transaction is "+tx.FinalStatus.String()+", not REJECTED")
	}
	if tx.HasStep(models.AgentOverrideRisk) {
		return dErrors.New(dErrors.CodeNotOverridable, "transaction was already overridden")
	}
	step, ok := tx.RejectingStep()
	if !ok || step.Agent != models.AgentRisk {
		return dErrors.New(dErrors.CodeNotOverridable, "only Risk rejections can be overridden")
	}
	return nil
}

func (s *Service) observe(err error, tx *models.Transaction) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.IncrementOverride(string(dErrors.CodeOf(err)))
		return
	}
	s.metrics.IncrementOverride(strings.ToLower(tx.FinalStatus.String()))
}
