package orchestrator

import (
	"context"

	"efrn/internal/ledger"
	"efrn/internal/override"
	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
)

// Runner evaluates a pending transaction through every agent.
type Runner interface {
	Run(ctx context.Context, tx *models.Transaction, priorRejections int) error
}

// Ledger is the append-only record the orchestrator writes to and reads from.
type Ledger interface {
	Record(ctx context.Context, tx *models.Transaction) (ledger.Entry, error)
	List(ctx context.Context) ([]ledger.Entry, error)
	Verify(ctx context.Context) (ledger.VerifyResult, error)
	PriorRejections(ctx context.Context, employee id.EmployeeID) (int, error)
}

// TransactionStore keeps finalized transactions for the override path.
type TransactionStore interface {
	Save(ctx context.Context, tx *models.Transaction) error
}

// Overrider applies approver overrides.
type Overrider interface {
	Submit(ctx context.Context, in override.Request) (*models.Transaction, error)
}
