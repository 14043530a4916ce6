package agents

import (
	"crypto/sha256"
	"encoding/hex"

	"efrn/internal/transaction/models"
)

// SettlementRefPrefix prefixes settlement references.
const SettlementRefPrefix = "FTM-"

// Settlement posts the transaction to the settlement rail. The rail is modeled
// as a limit check plus a reference derived from the transaction id, so the
// same transaction always settles under the same reference.
type Settlement struct {
	policy Policy
}

func (a *Settlement) Name() models.Agent { return models.AgentSettlement }

func (a *Settlement) Evaluate(tc models.TransactionContext, _ []models.AgentStep) (Result, error) {
	usd, err := a.policy.ToUSD(tc.Amount, tc.Currency)
	if err != nil {
		return Result{}, err
	}
	if usd.GreaterThan(a.policy.SettlementLimitUSD) {
		return rejected("amount exceeds settlement limit of "+a.policy.SettlementLimitUSD.StringFixed(2)+" USD", nil), nil
	}
	ref := SettlementReference(tc)
	return passed("settled ref "+ref, map[string]string{"ftm_ref": ref}), nil
}

// SettlementReference derives the deterministic rail reference.
func SettlementReference(tc models.TransactionContext) string {
	sum := sha256.Sum256([]byte(tc.TransactionID))
	return SettlementRefPrefix + hex.EncodeToString(sum[:])[:12]
}
