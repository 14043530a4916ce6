package agents

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
)

// =============================================================================
// Agent Test Suite
// =============================================================================
// Justification for unit tests: agents are pure functions over a context and
// the committed trail. Threshold boundaries and formula results are easier to
// pin down here than through the orchestrator.

type AgentSuite struct {
	suite.Suite
	policy Policy
	set    *Set
}

func TestAgentSuite(t *testing.T) {
	suite.Run(t, new(AgentSuite))
}

func (s *AgentSuite) SetupTest() {
	s.policy = DefaultPolicy()
	s.policy.BlockedEmployees = map[id.EmployeeID]bool{"EMP666": true}
	s.set = NewSet(s.policy)
}

func ctxFor(employee string, amount string, currency id.Currency) models.TransactionContext {
	return models.TransactionContext{
		TransactionID: "EFRN-test-1",
		Employee:      id.EmployeeID(employee),
		Amount:        decimal.RequireFromString(amount),
		Currency:      currency,
	}
}

func step(agent models.Agent, status models.StepStatus) models.AgentStep {
	return models.AgentStep{Agent: agent, Status: status, Timestamp: time.Unix(0, 0)}
}

func intPtr(v int) *int { return &v }

// =============================================================================
// Set Tests
// =============================================================================

func (s *AgentSuite) TestSetOrder() {
	s.Run("all agents in fixed order", func() {
		var names []models.Agent
		for _, a := range s.set.All() {
			names = append(names, a.Name())
		}
		s.Equal(Order, names)
	})

	s.Run("after risk resumes at escrow", func() {
		var names []models.Agent
		for _, a := range s.set.After(models.AgentRisk) {
			names = append(names, a.Name())
		}
		s.Equal([]models.Agent{models.AgentEscrow, models.AgentSettlement, models.AgentAudit}, names)
	})

	s.Run("after unknown agent is empty", func() {
		s.Empty(s.set.After(models.AgentOverrideRisk))
	})
}

// =============================================================================
// Policy Tests
// =============================================================================

func (s *AgentSuite) TestPolicy() {
	s.Run("default policy validates", func() {
		s.NoError(DefaultPolicy().Validate())
	})

	s.Run("zero divisor is rejected", func() {
		p := DefaultPolicy()
		p.RiskAmountDivisor = decimal.Zero
		s.Error(p.Validate())
	})

	s.Run("hold rate above one is rejected", func() {
		p := DefaultPolicy()
		p.EscrowHoldRate = decimal.NewFromInt(2)
		s.Error(p.Validate())
	})

	s.Run("missing rate is reference data error", func() {
		p := DefaultPolicy()
		delete(p.USDRates, id.CurrencyNGN)
		_, err := p.ToUSD(decimal.NewFromInt(10), id.CurrencyNGN)
		s.ErrorIs(err, ErrReferenceData)
	})

	s.Run("every recognized currency has a default rate", func() {
		p := DefaultPolicy()
		for _, c := range id.RecognizedCurrencies() {
			usd, err := p.ToUSD(decimal.NewFromInt(1), c)
			s.Require().NoError(err, c)
			s.True(usd.IsPositive(), c)
		}
	})

	s.Run("converts with table rate", func() {
		usd, err := s.policy.ToUSD(decimal.NewFromInt(100), id.CurrencyEUR)
		s.Require().NoError(err)
		s.True(usd.Equal(decimal.NewFromInt(108)), usd.String())
	})
}

// =============================================================================
// Compliance Tests
// =============================================================================

func (s *AgentSuite) TestCompliance() {
	a := &Compliance{policy: s.policy}

	s.Run("ordinary employee passes", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "1200", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepPassed, res.Status)
		s.Equal("KYC verified", res.Detail)
		s.Nil(res.Score)
	})

	s.Run("blocked employee rejected", func() {
		res, err := a.Evaluate(ctxFor("EMP666", "10", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepRejected, res.Status)
		s.Contains(res.Detail, "blocked")
	})

	s.Run("amount above reporting limit rejected", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "250000.01", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepRejected, res.Status)
	})

	s.Run("amount at reporting limit passes", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "250000", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepPassed, res.Status)
	})

	s.Run("missing rate faults", func() {
		p := DefaultPolicy()
		delete(p.USDRates, id.CurrencyZAR)
		_, err := (&Compliance{policy: p}).Evaluate(ctxFor("EMP001", "10", id.CurrencyZAR), nil)
		s.ErrorIs(err, ErrReferenceData)
	})
}

// =============================================================================
// Risk Tests
// =============================================================================
// Formula: 100 - ceil(usd/200) - min(5*priorRejections, 20), clamped to 0..100

func (s *AgentSuite) TestRiskScore() {
	a := &Risk{policy: s.policy}
	tests := []struct {
		name  string
		usd   string
		prior int
		want  int
	}{
		{name: "small amount", usd: "1200", prior: 0, want: 94},
		{name: "fraction rounds penalty up", usd: "1", prior: 0, want: 99},
		{name: "large amount clamps to zero", usd: "20000", prior: 0, want: 0},
		{name: "history penalty applied", usd: "1200", prior: 2, want: 84},
		{name: "history penalty capped", usd: "1200", prior: 10, want: 74},
		{name: "threshold boundary", usd: "10000", prior: 0, want: 50},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, a.Score(decimal.RequireFromString(tt.usd), tt.prior))
		})
	}
}

func (s *AgentSuite) TestRiskEvaluate() {
	a := &Risk{policy: s.policy}

	s.Run("passing score recorded", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "1200", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepPassed, res.Status)
		s.Require().NotNil(res.Score)
		s.Equal(94, *res.Score)
		s.Equal(RiskModelVersion, res.Meta["model_version"])
		s.Equal("94", res.Meta["score"])
	})

	s.Run("score at minimum passes", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "10000", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepPassed, res.Status)
	})

	s.Run("high amount rejected with score", func() {
		res, err := a.Evaluate(ctxFor("EMP999", "20000", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepRejected, res.Status)
		s.Require().NotNil(res.Score)
		s.Equal(0, *res.Score)
		s.Contains(res.Detail, "high risk")
	})

	s.Run("converts non USD amounts", func() {
		// 1000 EUR = 1080 USD -> ceil(5.4) = 6
		res, err := a.Evaluate(ctxFor("EMP001", "1000", id.CurrencyEUR), nil)
		s.Require().NoError(err)
		s.Equal(94, *res.Score)
	})
}

// =============================================================================
// Escrow Tests
// =============================================================================

func (s *AgentSuite) TestEscrow() {
	a := &Escrow{policy: s.policy}

	s.Run("holds two percent", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "1200", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepPassed, res.Status)
		s.Equal("held 24.00 USD", res.Detail)
		s.Equal("24.00", res.Meta["held_amount"])
	})

	s.Run("hold rounds to cents", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "10.555", id.CurrencyGBP), nil)
		s.Require().NoError(err)
		s.Equal("held 0.21 GBP", res.Detail)
	})

	s.Run("hold above ceiling rejected", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "100001", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepRejected, res.Status)
		s.Contains(res.Detail, "exceeds limit")
	})
}

// =============================================================================
// Settlement Tests
// =============================================================================

func (s *AgentSuite) TestSettlement() {
	a := &Settlement{policy: s.policy}

	s.Run("reference is deterministic", func() {
		tc := ctxFor("EMP001", "1200", id.CurrencyUSD)
		first, err := a.Evaluate(tc, nil)
		s.Require().NoError(err)
		second, err := a.Evaluate(tc, nil)
		s.Require().NoError(err)
		s.Equal(first, second)
		s.Equal(models.StepPassed, first.Status)
		ref := SettlementReference(tc)
		s.Len(ref, len(SettlementRefPrefix)+12)
		s.Equal(ref, first.Meta["ftm_ref"])
		s.Equal("settled ref "+ref, first.Detail)
	})

	s.Run("different transactions settle under different references", func() {
		a1 := ctxFor("EMP001", "1", id.CurrencyUSD)
		a2 := a1
		a2.TransactionID = "EFRN-test-2"
		s.NotEqual(SettlementReference(a1), SettlementReference(a2))
	})

	s.Run("amount above rail limit rejected", func() {
		res, err := a.Evaluate(ctxFor("EMP001", "150000.01", id.CurrencyUSD), nil)
		s.Require().NoError(err)
		s.Equal(models.StepRejected, res.Status)
	})
}

// =============================================================================
// Audit Tests
// =============================================================================

func (s *AgentSuite) TestAudit() {
	a := &Audit{}
	tc := ctxFor("EMP001", "1200", id.CurrencyUSD)
	tc.TrustScore = intPtr(94)

	clean := []models.AgentStep{
		step(models.AgentCompliance, models.StepPassed),
		step(models.AgentRisk, models.StepPassed),
		step(models.AgentEscrow, models.StepPassed),
		step(models.AgentSettlement, models.StepPassed),
	}

	s.Run("clean trail passes", func() {
		res, err := a.Evaluate(tc, clean)
		s.Require().NoError(err)
		s.Equal(models.StepPassed, res.Status)
		s.Equal("cleared and recorded in ledger", res.Detail)
	})

	s.Run("override trail passes", func() {
		trail := []models.AgentStep{
			step(models.AgentCompliance, models.StepPassed),
			step(models.AgentRisk, models.StepRejected),
			step(models.AgentOverrideRisk, models.StepOverridden),
			step(models.AgentEscrow, models.StepPassed),
			step(models.AgentSettlement, models.StepPassed),
		}
		res, err := a.Evaluate(tc, trail)
		s.Require().NoError(err)
		s.Equal(models.StepPassed, res.Status)
		s.Contains(res.Detail, "override")
	})

	s.Run("unoverridden risk rejection fails", func() {
		trail := []models.AgentStep{
			step(models.AgentCompliance, models.StepPassed),
			step(models.AgentRisk, models.StepRejected),
			step(models.AgentEscrow, models.StepPassed),
			step(models.AgentSettlement, models.StepPassed),
		}
		res, err := a.Evaluate(tc, trail)
		s.Require().NoError(err)
		s.Equal(models.StepRejected, res.Status)
	})

	s.Run("missing trust score fails", func() {
		noScore := tc
		noScore.TrustScore = nil
		res, err := a.Evaluate(noScore, clean)
		s.Require().NoError(err)
		s.Equal(models.StepRejected, res.Status)
	})

	s.Run("missing settlement fails", func() {
		res, err := a.Evaluate(tc, clean[:3])
		s.Require().NoError(err)
		s.Equal(models.StepRejected, res.Status)
		s.Contains(res.Detail, "Settlement")
	})
}

func TestAgentsArePure(t *testing.T) {
	set := NewSet(DefaultPolicy())
	tc := ctxFor("EMP001", "1200", id.CurrencyUSD)
	for _, a := range set.All()[:4] {
		first, err := a.Evaluate(tc, nil)
		require.NoError(t, err)
		second, err := a.Evaluate(tc, nil)
		require.NoError(t, err)
		assert.Equal(t, first, second, a.Name())
	}
}
