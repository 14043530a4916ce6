package override

import (
	"context"

	"efrn/internal/agents"
	"efrn/internal/ledger"
	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
)

// TransactionStore finds and commits transactions.
type TransactionStore interface {
	FindLatest(ctx context.Context, employee id.EmployeeID, currency id.Currency) (*models.Transaction, error)
	FindLatestRejected(ctx context.Context, employee id.EmployeeID, currency id.Currency) (*models.Transaction, error)
	Save(ctx context.Context, tx *models.Transaction) error
}

// Ledger records resolved transactions and reports history.
type Ledger interface {
	Record(ctx context.Context, tx *models.Transaction) (ledger.Entry, error)
	PriorRejections(ctx context.Context, employee id.EmployeeID) (int, error)
}

// Resumer re-enters the agent pipeline after Risk.
type Resumer interface {
	RecordStep(ctx context.Context, tx *models.Transaction, agent models.Agent, res agents.Result)
	Resume(ctx context.Context, tx *models.Transaction, priorRejections int, clearedReason string) error
}

// Metrics observes override outcomes.
type Metrics interface {
	IncrementOverride(outcome string)
}
