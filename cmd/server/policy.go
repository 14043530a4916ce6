package main

import (
	"fmt"

	"efrn/internal/agents"
	"efrn/internal/platform/config"
	id "efrn/pkg/domain"
)

// buildPolicy applies environment overrides on top of the default policy.
func buildPolicy(o config.PolicyOverrides) (agents.Policy, error) {
	p := agents.DefaultPolicy()

	for _, raw := range o.BlockedEmployees {
		emp, err := id.ParseEmployeeID(raw)
		if err != nil {
			return agents.Policy{}, fmt.Errorf("blocked employee %q: %w", raw, err)
		}
		p.BlockedEmployees[emp] = true
	}
	if o.ComplianceMaxUSD != nil {
		p.ComplianceMaxUSD = *o.ComplianceMaxUSD
	}
	if o.RiskMinScore != nil {
		p.RiskMinScore = *o.RiskMinScore
	}
	if o.RiskAmountDivisor != nil {
		p.RiskAmountDivisor = *o.RiskAmountDivisor
	}
	if o.EscrowHoldRate != nil {
		p.EscrowHoldRate = *o.EscrowHoldRate
	}
	if o.EscrowMaxHoldUSD != nil {
		p.EscrowMaxHoldUSD = *o.EscrowMaxHoldUSD
	}
	if o.SettlementLimitUSD != nil {
		p.SettlementLimitUSD = *o.SettlementLimitUSD
	}

	if err := p.Validate(); err != nil {
		return agents.Policy{}, err
	}
	return p, nil
}

func parseApprovers(raw []string) ([]id.ApproverID, error) {
	out := make([]id.ApproverID, 0, len(raw))
	for _, r := range raw {
		a, err := id.ParseApproverID(r)
		if err != nil {
			return nil, fmt.Errorf("approver %q: %w", r, err)
		}
		out = append(out, a)
	}
	return out, nil
}
