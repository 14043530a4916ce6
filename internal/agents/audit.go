package agents

import (
	"strconv"

	"efrn/internal/transaction/models"
)

// Audit checks that the committed trail supports clearing: Compliance passed,
// Risk scored and either passed or was overridden, Escrow and Settlement
// passed.
type Audit struct{}

func (a *Audit) Name() models.Agent { return models.AgentAudit }

func (a *Audit) Evaluate(tc models.TransactionContext, prior []models.AgentStep) (Result, error) {
	if tc.TrustScore == nil {
		return rejected("audit trail inconsistent: no trust score recorded", nil), nil
	}
	status := map[models.Agent]models.StepStatus{}
	for _, s := range prior {
		status[s.Agent] = s.Status
	}
	if status[models.AgentCompliance] != models.StepPassed {
		return rejected("audit trail inconsistent: compliance did not pass", nil), nil
	}
	switch status[models.AgentRisk] {
	case models.StepPassed:
	case models.StepRejected:
		if status[models.AgentOverrideRisk] != models.StepOverridden {
			return rejected("audit trail inconsistent: risk rejection was not overridden", nil), nil
		}
	default:
		return rejected("audit trail inconsistent: risk step missing", nil), nil
	}
	for _, agent := range []models.Agent{models.AgentEscrow, models.AgentSettlement} {
		if status[agent] != models.StepPassed {
			return rejected("audit trail inconsistent: "+agent.String()+" did not pass", nil), nil
		}
	}
	detail := "cleared and recorded in ledger"
	if status[models.AgentOverrideRisk] == models.StepOverridden {
		detail += " (override path)"
	}
	return passed(detail, map[string]string{"steps_checked": strconv.Itoa(len(prior))}), nil
}
