package store

import (
	"time"

	"github.com/shopspring/decimal"

	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
)

// transactionRecord is the JSON form persisted in Redis.
type transactionRecord struct {
	ID          string          `json:"id"`
	Employee    string          `json:"employee"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Scenario    string          `json:"scenario,omitempty"`
	TrustScore  *int            `json:"trust_score,omitempty"`
	Steps       []stepRecord    `json:"steps"`
	FinalStatus string          `json:"final_status"`
	Reason      string          `json:"reason,omitempty"`
	Sequence    int64           `json:"ledger_sequence"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type stepRecord struct {
	Agent     string            `json:"agent"`
	Status    string            `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

func toRecord(tx *models.Transaction) transactionRecord {
	steps := make([]stepRecord, len(tx.Steps))
	for i, s := range tx.Steps {
		steps[i] = stepRecord{
			Agent:     s.Agent.String(),
			Status:    s.Status.String(),
			Detail:    s.Detail,
			Timestamp: s.Timestamp,
			Meta:      s.Meta,
		}
	}
	return transactionRecord{
		ID:          tx.ID.String(),
		Employee:    tx.Employee.String(),
		Amount:      tx.Amount,
		Currency:    tx.Currency.String(),
		Scenario:    tx.Scenario,
		TrustScore:  tx.TrustScore,
		Steps:       steps,
		FinalStatus: tx.FinalStatus.String(),
		Reason:      tx.Reason,
		Sequence:    tx.LedgerSequence,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

func (r transactionRecord) toModel() *models.Transaction {
	steps := make([]models.AgentStep, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = models.AgentStep{
			Agent:     models.Agent(s.Agent),
			Status:    models.StepStatus(s.Status),
			Detail:    s.Detail,
			Timestamp: s.Timestamp,
			Meta:      s.Meta,
		}
	}
	return &models.Transaction{
		ID:             id.TransactionID(r.ID),
		Employee:       id.EmployeeID(r.Employee),
		Amount:         r.Amount,
		Currency:       id.Currency(r.Currency),
		Scenario:       r.Scenario,
		TrustScore:     r.TrustScore,
		Steps:          steps,
		FinalStatus:    models.FinalStatus(r.FinalStatus),
		Reason:         r.Reason,
		LedgerSequence: r.Sequence,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
