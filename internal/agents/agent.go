// Package agents implements the five deterministic evaluators of the trust
// pipeline. Every agent is a pure function of the transaction context and the
// steps committed before it: no I/O, no clock, no shared state.
package agents

import (
	"efrn/internal/transaction/models"
)

// Result is an agent's verdict. Score is set only by Risk.
type Result struct {
	Status models.StepStatus
	Detail string
	Score  *int
	Meta   map[string]string
}

// Agent is the shared evaluation capability. A non-nil error means the agent
// could not reach a verdict and must abort the run.
type Agent interface {
	Name() models.Agent
	Evaluate(tc models.TransactionContext, prior []models.AgentStep) (Result, error)
}

// Set is the closed, ordered agent sequence the pipeline iterates.
type Set struct {
	agents []Agent
}

// Order is the fixed pipeline order.
var Order = []models.Agent{
	models.AgentCompliance,
	models.AgentRisk,
	models.AgentEscrow,
	models.AgentSettlement,
	models.AgentAudit,
}

// NewSet builds the five agents over one policy.
func NewSet(policy Policy) *Set {
	return &Set{agents: []Agent{
		&Compliance{policy: policy},
		&Risk{policy: policy},
		&Escrow{policy: policy},
		&Settlement{policy: policy},
		&Audit{},
	}}
}

// All returns the agents in pipeline order.
func (s *Set) All() []Agent {
	return append([]Agent(nil), s.agents...)
}

// After returns the agents strictly after the named one, in order.
func (s *Set) After(name models.Agent) []Agent {
	for i, a := range s.agents {
		if a.Name() == name {
			return append([]Agent(nil), s.agents[i+1:]...)
		}
	}
	return nil
}

func passed(detail string, meta map[string]string) Result {
	return Result{Status: models.StepPassed, Detail: detail, Meta: meta}
}

func rejected(detail string, meta map[string]string) Result {
	return Result{Status: models.StepRejected, Detail: detail, Meta: meta}
}
