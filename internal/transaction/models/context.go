package models

import (
	"github.com/shopspring/decimal"

	id "efrn/pkg/domain"
)

// TransactionContext is the read-only view agents evaluate. It is built once
// per run from the transaction and the employee's ledger history.
type TransactionContext struct {
	TransactionID id.TransactionID
	Employee      id.EmployeeID
	Amount        decimal.Decimal
	Currency      id.Currency
	// PriorRejections counts the employee's Rejected ledger entries at the
	// time the run started.
	PriorRejections int
	// TrustScore is the score already on the transaction, if any. Only the
	// override path resumes with it populated.
	TrustScore *int
}

// NewContext builds the evaluation context for a transaction.
func NewContext(tx *Transaction, priorRejections int) TransactionContext {
	return TransactionContext{
		TransactionID:   tx.ID,
		Employee:        tx.Employee,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		PriorRejections: priorRejections,
		TrustScore:      tx.TrustScore,
	}
}
