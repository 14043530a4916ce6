// Package pipeline runs the ordered agent sequence over a transaction.
//
// A run appends one step per evaluated agent, stops at the first rejection,
// and resolves the transaction's final status. An agent error aborts the run
// with an agent_fault; the caller must discard the transaction in that case.
package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"efrn/internal/agents"
	"efrn/internal/transaction/models"
	dErrors "efrn/pkg/domain-errors"
)

// Sequence is the ordered agent set the pipeline iterates.
type Sequence interface {
	All() []agents.Agent
	After(name models.Agent) []agents.Agent
}

// VerdictRecorder observes every recorded step.
type VerdictRecorder interface {
	ObserveVerdict(agent models.Agent, status models.StepStatus)
}

// Pipeline evaluates transactions against a fixed agent sequence.
type Pipeline struct {
	agents   Sequence
	logger   *slog.Logger
	recorder VerdictRecorder
	now      func(ctx context.Context) time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRecorder registers a verdict observer.
func WithRecorder(r VerdictRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithClock overrides the step timestamp source. The default is the UTC wall
// clock, so each step carries its own instant of evaluation.
func WithClock(now func(ctx context.Context) time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline over the given sequence.
func New(seq Sequence, opts ...Option) *Pipeline {
	p := &Pipeline{
		agents: seq,
		logger: slog.Default(),
		now:    func(context.Context) time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run evaluates every agent in order. The transaction must be Pending.
func (p *Pipeline) Run(ctx context.Context, tx *models.Transaction, priorRejections int) error {
	if tx.FinalStatus != models.StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "pipeline run requires a pending transaction")
	}
	tc := models.NewContext(tx, priorRejections)
	return p.evaluate(ctx, tx, tc, p.agents.All(), models.StatusCleared, "")
}

// Resume evaluates the agents after Risk on a transaction whose Risk
// rejection has been overridden. If they all pass the transaction resolves to
// ClearedByOverride with clearedReason; otherwise it stays Rejected with the
// rejecting agent's detail.
func (p *Pipeline) Resume(ctx context.Context, tx *models.Transaction, priorRejections int, clearedReason string) error {
	if tx.FinalStatus != models.StatusRejected {
		return dErrors.New(dErrors.CodeInvariantViolation, "pipeline resume requires a rejected transaction")
	}
	if tx.TrustScore == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "pipeline resume requires a recorded trust score")
	}
	tc := models.NewContext(tx, priorRejections)
	return p.evaluate(ctx, tx, tc, p.agents.After(models.AgentRisk), models.StatusClearedByOverride, clearedReason)
}

// RecordStep appends a step stamped no earlier than the previous one.
func (p *Pipeline) RecordStep(ctx context.Context, tx *models.Transaction, agent models.Agent, res agents.Result) {
	ts := p.now(ctx)
	if n := len(tx.Steps); n > 0 && ts.Before(tx.Steps[n-1].Timestamp) {
		ts = tx.Steps[n-1].Timestamp
	}
	tx.AppendStep(models.AgentStep{
		Agent:     agent,
		Status:    res.Status,
		Detail:    res.Detail,
		Timestamp: ts,
		Meta:      res.Meta,
	})
	if p.recorder != nil {
		p.recorder.ObserveVerdict(agent, res.Status)
	}
}

func (p *Pipeline) evaluate(
	ctx context.Context,
	tx *models.Transaction,
	tc models.TransactionContext,
	seq []agents.Agent,
	clearedStatus models.FinalStatus,
	clearedReason string,
) error {
	for _, agent := range seq {
		if err := ctx.Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "pipeline cancelled")
		}
		name := agent.Name()
		res, err := agent.Evaluate(tc, slices.Clone(tx.Steps))
		if err != nil {
			p.logger.ErrorContext(ctx, "agent fault",
				"transaction_id", tx.ID,
				"agent", name,
				"error", err,
			)
			return dErrors.Wrap(err, dErrors.CodeAgentFault, "agent "+name.String()+" failed")
		}
		if res.Status != models.StepPassed && res.Status != models.StepRejected {
			return dErrors.New(dErrors.CodeAgentFault, "agent "+name.String()+" returned invalid verdict "+res.Status.String())
		}
		if res.Score != nil {
			if name != models.AgentRisk {
				return dErrors.New(dErrors.CodeAgentFault, "agent "+name.String()+" may not set a trust score")
			}
			if err := tx.SetTrustScore(*res.Score); err != nil {
				return err
			}
			tc.TrustScore = tx.TrustScore
		}

		p.RecordStep(ctx, tx, name, res)
		p.logger.DebugContext(ctx, "agent verdict",
			"transaction_id", tx.ID,
			"agent", name,
			"status", res.Status,
		)

		if res.Status == models.StepRejected {
			return tx.Resolve(models.StatusRejected, res.Detail)
		}
	}
	return tx.Resolve(clearedStatus, clearedReason)
}
