package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"efrn/internal/orchestrator"
	"efrn/internal/override"
	dErrors "efrn/pkg/domain-errors"
)

// CreateTransactionRequest is the body of POST /api/transaction. Amount
// accepts a JSON number or a decimal string.
type CreateTransactionRequest struct {
	Employee string          `json:"employee"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Scenario string          `json:"scenario,omitempty"`
}

// Validate normalizes whitespace and checks required fields. Domain rules
// are enforced by the orchestrator.
func (r *CreateTransactionRequest) Validate() error {
	r.Employee = strings.TrimSpace(r.Employee)
	r.Currency = strings.TrimSpace(r.Currency)
	r.Scenario = strings.TrimSpace(r.Scenario)
	if r.Employee == "" {
		return dErrors.New(dErrors.CodeValidation, "employee is required")
	}
	if r.Currency == "" {
		return dErrors.New(dErrors.CodeValidation, "currency is required")
	}
	return nil
}

func (r *CreateTransactionRequest) toService() orchestrator.CreateRequest {
	return orchestrator.CreateRequest{
		Employee: r.Employee,
		Amount:   r.Amount,
		Currency: r.Currency,
		Scenario: r.Scenario,
	}
}

// OverrideRequest is the body of POST /api/override.
type OverrideRequest struct {
	Employee      string `json:"employee"`
	Approver      string `json:"approver"`
	Justification string `json:"justification"`
	Currency      string `json:"currency"`
}

// Validate only trims. Precondition order (justification, approver,
// employee) is owned by the override service.
func (r *OverrideRequest) Validate() error {
	r.Employee = strings.TrimSpace(r.Employee)
	r.Approver = strings.TrimSpace(r.Approver)
	r.Justification = strings.TrimSpace(r.Justification)
	r.Currency = strings.TrimSpace(r.Currency)
	return nil
}

func (r *OverrideRequest) toService() override.Request {
	return override.Request{
		Employee:      r.Employee,
		Approver:      r.Approver,
		Justification: r.Justification,
		Currency:      r.Currency,
	}
}
