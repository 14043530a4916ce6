package agents

import (
	"efrn/internal/transaction/models"
)

// Escrow holds a fixed share of the amount and refuses holds above the
// configured ceiling.
type Escrow struct {
	policy Policy
}

func (a *Escrow) Name() models.Agent { return models.AgentEscrow }

func (a *Escrow) Evaluate(tc models.TransactionContext, _ []models.AgentStep) (Result, error) {
	hold := tc.Amount.Mul(a.policy.EscrowHoldRate).Round(2)
	holdUSD, err := a.policy.ToUSD(hold, tc.Currency)
	if err != nil {
		return Result{}, err
	}
	meta := map[string]string{
		"held_amount": hold.StringFixed(2),
		"hold_rate":   a.policy.EscrowHoldRate.String(),
	}
	if holdUSD.GreaterThan(a.policy.EscrowMaxHoldUSD) {
		return rejected("escrow hold "+holdUSD.StringFixed(2)+" USD exceeds limit of "+
			a.policy.EscrowMaxHoldUSD.StringFixed(2)+" USD", meta), nil
	}
	return passed("held "+hold.StringFixed(2)+" "+tc.Currency.String(), meta), nil
}
