package models

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	id "efrn/pkg/domain"
	dErrors "efrn/pkg/domain-errors"
)

// TransactionRequest is the validated, normalized input to a first run.
type TransactionRequest struct {
	Employee id.EmployeeID
	Amount   decimal.Decimal
	Currency id.Currency
	// Scenario is a client hint recorded for display. No agent reads it.
	Scenario string
}

// OverrideRequest asks for re-evaluation of a Risk-rejected transaction.
type OverrideRequest struct {
	Employee      id.EmployeeID
	Approver      id.ApproverID
	Justification string
	Currency      id.Currency
}

// AgentStep records one evaluation. Meta carries auxiliary evidence and is
// never consulted for control flow.
type AgentStep struct {
	Agent     Agent
	Status    StepStatus
	Detail    string
	Timestamp time.Time
	Meta      map[string]string
}

// Transaction is the unit the pipeline owns during a run. LedgerSequence is
// the sequence of the ledger entry recording its latest outcome; zero until
// the first append.
type Transaction struct {
	ID             id.TransactionID
	Employee       id.EmployeeID
	Amount         decimal.Decimal
	Currency       id.Currency
	Scenario       string
	TrustScore     *int
	Steps          []AgentStep
	FinalStatus    FinalStatus
	Reason         string
	LedgerSequence int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTransaction creates a Pending transaction for a validated request.
func NewTransaction(txID id.TransactionID, req TransactionRequest, now time.Time) (*Transaction, error) {
	if txID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transaction id is required")
	}
	if req.Employee.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "employee is required")
	}
	if !req.Amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "amount must be positive")
	}
	if req.Currency == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "currency is required")
	}
	return &Transaction{
		ID:          txID,
		Employee:    req.Employee,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Scenario:    req.Scenario,
		FinalStatus: StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AppendStep adds a step to the audit trail. Steps are never reordered or removed.
func (t *Transaction) AppendStep(step AgentStep) {
	t.Steps = append(t.Steps, step)
	if step.Timestamp.After(t.UpdatedAt) {
		t.UpdatedAt = step.Timestamp
	}
}

// SetTrustScore records the Risk score. It may be written exactly once.
func (t *Transaction) SetTrustScore(score int) error {
	if t.TrustScore != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "trust score already set")
	}
	t.TrustScore = &score
	return nil
}

// Resolve moves the transaction to a terminal state, enforcing the finalStatus
// state machine.
func (t *Transaction) Resolve(status FinalStatus, reason string) error {
	if !CanTransition(t.FinalStatus, status) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"illegal status transition "+string(t.FinalStatus)+" -> "+string(status))
	}
	t.FinalStatus = status
	t.Reason = reason
	return nil
}

// RejectingStep returns the last rejected step of the trail, if any.
func (t *Transaction) RejectingStep() (AgentStep, bool) {
	for i := len(t.Steps) - 1; i >= 0; i-- {
		if t.Steps[i].Status == StepRejected {
			return t.Steps[i], true
		}
	}
	return AgentStep{}, false
}

// OpenRejection reports whether the transaction is rejected and no override
// has been applied to it yet.
func (t *Transaction) OpenRejection() bool {
	return t.FinalStatus == StatusRejected && !t.HasStep(AgentOverrideRisk)
}

// HasStep reports whether the trail contains a step for agent.
func (t *Transaction) HasStep(agent Agent) bool {
	return slices.ContainsFunc(t.Steps, func(s AgentStep) bool { return s.Agent == agent })
}

// Clone returns a deep copy so an override can work on a private copy and
// commit only after the ledger accepts it.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.TrustScore != nil {
		score := *t.TrustScore
		c.TrustScore = &score
	}
	c.Steps = make([]AgentStep, len(t.Steps))
	for i, s := range t.Steps {
		s.Meta = maps.Clone(s.Meta)
		c.Steps[i] = s
	}
	return &c
}
