package agents

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	id "efrn/pkg/domain"
)

// ErrReferenceData is returned when a policy input the agents depend on is
// missing. The pipeline treats it as a fault, not a verdict.
var ErrReferenceData = errors.New("reference data unavailable")

// RiskModelVersion labels the scoring formula in Risk step evidence.
const RiskModelVersion = "risk-v2.1"

// Policy holds every threshold the five agents apply. All USD-denominated
// limits are compared after converting the transaction amount with USDRates.
type Policy struct {
	// USDRates maps a currency to the USD value of one unit.
	USDRates map[id.Currency]decimal.Decimal

	BlockedEmployees   map[id.EmployeeID]bool
	ComplianceMaxUSD   decimal.Decimal
	RiskMinScore       int
	RiskAmountDivisor  decimal.Decimal
	RiskHistoryPenalty int
	RiskHistoryCap     int
	EscrowHoldRate     decimal.Decimal
	EscrowMaxHoldUSD   decimal.Decimal
	SettlementLimitUSD decimal.Decimal
}

// DefaultPolicy returns the thresholds used when configuration does not
// override them.
func DefaultPolicy() Policy {
	return Policy{
		USDRates: map[id.Currency]decimal.Decimal{
			id.CurrencyUSD: decimal.NewFromInt(1),
			id.CurrencyEUR: decimal.RequireFromString("1.08"),
			id.CurrencyGBP: decimal.RequireFromString("1.27"),
			id.CurrencyCHF: decimal.RequireFromString("1.13"),
			id.CurrencyCAD: decimal.RequireFromString("0.73"),
			id.CurrencyAUD: decimal.RequireFromString("0.66"),
			id.CurrencyJPY: decimal.RequireFromString("0.0067"),
			id.CurrencyINR: decimal.RequireFromString("0.012"),
			id.CurrencySGD: decimal.RequireFromString("0.74"),
			id.CurrencyKES: decimal.RequireFromString("0.0077"),
			id.CurrencyNGN: decimal.RequireFromString("0.00065"),
			id.CurrencyZAR: decimal.RequireFromString("0.055"),
		},
		BlockedEmployees:   map[id.EmployeeID]bool{},
		ComplianceMaxUSD:   decimal.NewFromInt(250000),
		RiskMinScore:       50,
		RiskAmountDivisor:  decimal.NewFromInt(200),
		RiskHistoryPenalty: 5,
		RiskHistoryCap:     20,
		EscrowHoldRate:     decimal.RequireFromString("0.02"),
		EscrowMaxHoldUSD:   decimal.NewFromInt(2000),
		SettlementLimitUSD: decimal.NewFromInt(150000),
	}
}

// Validate rejects policies that would make an agent undefined.
func (p Policy) Validate() error {
	if len(p.USDRates) == 0 {
		return fmt.Errorf("policy: at least one USD rate is required")
	}
	for c, r := range p.USDRates {
		if !r.IsPositive() {
			return fmt.Errorf("policy: USD rate for %s must be positive", c)
		}
	}
	if !p.RiskAmountDivisor.IsPositive() {
		return fmt.Errorf("policy: risk amount divisor must be positive")
	}
	if p.RiskMinScore < 0 || p.RiskMinScore > 100 {
		return fmt.Errorf("policy: risk minimum score must be within 0..100")
	}
	if p.RiskHistoryPenalty < 0 || p.RiskHistoryCap < 0 {
		return fmt.Errorf("policy: risk history penalty and cap must not be negative")
	}
	if p.EscrowHoldRate.IsNegative() || p.EscrowHoldRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("policy: escrow hold rate must be within 0..1")
	}
	return nil
}

// ToUSD converts an amount using the policy's rate table.
func (p Policy) ToUSD(amount decimal.Decimal, currency id.Currency) (decimal.Decimal, error) {
	rate, ok := p.USDRates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no USD rate for %s", ErrReferenceData, currency)
	}
	return amount.Mul(rate), nil
}
