package agents

import (
	"efrn/internal/transaction/models"
)

// Compliance screens the employee against the blocked list and enforces the
// single-transaction reporting limit.
type Compliance struct {
	policy Policy
}

func (a *Compliance) Name() models.Agent { return models.AgentCompliance }

func (a *Compliance) Evaluate(tc models.TransactionContext, _ []models.AgentStep) (Result, error) {
	usd, err := a.policy.ToUSD(tc.Amount, tc.Currency)
	if err != nil {
		return Result{}, err
	}
	if a.policy.BlockedEmployees[tc.Employee] {
		return rejected("employee is on the compliance blocked list", map[string]string{"check": "blocked_list"}), nil
	}
	if usd.GreaterThan(a.policy.ComplianceMaxUSD) {
		return rejected("amount exceeds compliance reporting limit of "+a.policy.ComplianceMaxUSD.StringFixed(2)+" USD",
			map[string]string{"check": "reporting_limit", "amount_usd": usd.StringFixed(2)}), nil
	}
	return passed("KYC verified", map[string]string{"check": "kyc", "notes": "identity verified"}), nil
}
