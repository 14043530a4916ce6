package agents

import (
	"strconv"

	"github.com/shopspring/decimal"

	"efrn/internal/transaction/models"
)

// Risk scores the transaction from its USD amount and the employee's
// rejection history:
//
//	score = 100 - ceil(usd / divisor) - min(penalty * priorRejections, cap)
//
// clamped to 0..100. The transaction passes when score >= RiskMinScore.
type Risk struct {
	policy Policy
}

func (a *Risk) Name() models.Agent { return models.AgentRisk }

func (a *Risk) Evaluate(tc models.TransactionContext, _ []models.AgentStep) (Result, error) {
	usd, err := a.policy.ToUSD(tc.Amount, tc.Currency)
	if err != nil {
		return Result{}, err
	}
	score := a.Score(usd, tc.PriorRejections)
	meta := map[string]string{
		"score":            strconv.Itoa(score),
		"model_version":    RiskModelVersion,
		"prior_rejections": strconv.Itoa(tc.PriorRejections),
	}

	var res Result
	if score < a.policy.RiskMinScore {
		meta["reasons"] = "high amount"
		if tc.PriorRejections > 0 {
			meta["reasons"] += ", prior rejections"
		}
		res = rejected("high risk (score="+strconv.Itoa(score)+")", meta)
	} else {
		meta["reasons"] = "normal pattern"
		res = passed("score="+strconv.Itoa(score), meta)
	}
	res.Score = &score
	return res, nil
}

// Score applies the scoring formula.
func (a *Risk) Score(usd decimal.Decimal, priorRejections int) int {
	amountPenalty := usd.Div(a.policy.RiskAmountDivisor).Ceil().IntPart()
	historyPenalty := min(a.policy.RiskHistoryPenalty*priorRejections, a.policy.RiskHistoryCap)

	score := int64(100) - amountPenalty - int64(historyPenalty)
	return int(max(0, min(100, score)))
}
