package models

// Agent names one stage of the fixed evaluation pipeline. OverrideRisk is a
// synthetic marker recorded when an approver overrides a Risk rejection; it is
// never evaluated.
type Agent string

const (
	AgentCompliance   Agent = "Compliance"
	AgentRisk         Agent = "Risk"
	AgentEscrow       Agent = "Escrow"
	AgentSettlement   Agent = "Settlement"
	AgentAudit        Agent = "Audit"
	AgentOverrideRisk Agent = "OverrideRisk"
)

func (a Agent) String() string { return string(a) }

// StepStatus is the closed set of per-step outcomes.
type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepPassed     StepStatus = "PASSED"
	StepRejected   StepStatus = "REJECTED"
	StepOverridden StepStatus = "OVERRIDDEN"
)

func (s StepStatus) String() string { return string(s) }

// FinalStatus is the closed set of transaction outcomes.
type FinalStatus string

const (
	StatusPending           FinalStatus = "PENDING"
	StatusCleared           FinalStatus = "CLEARED"
	StatusRejected          FinalStatus = "REJECTED"
	StatusClearedByOverride FinalStatus = "CLEARED_BY_OVERRIDE"
)

func (s FinalStatus) String() string { return string(s) }

// allowedTransitions is the full finalStatus state machine. Pending resolves
// once on the first run; Rejected may be resolved again by an override, which
// either clears it or leaves it Rejected.
var allowedTransitions = map[FinalStatus]map[FinalStatus]bool{
	StatusPending:  {StatusCleared: true, StatusRejected: true},
	StatusRejected: {StatusClearedByOverride: true, StatusRejected: true},
}

// CanTransition reports whether from → to is a legal finalStatus move.
func CanTransition(from, to FinalStatus) bool {
	return allowedTransitions[from][to]
}

// IsTerminal reports whether the status is a resolved outcome.
func (s FinalStatus) IsTerminal() bool {
	return s == StatusCleared || s == StatusRejected || s == StatusClearedByOverride
}
