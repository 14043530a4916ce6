package e2e

import (
	"context"

	"github.com/cucumber/godog"

	"efrn/e2e/steps/orchestrator"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return ctx, nil
	})

	orchestrator.RegisterSteps(ctx, tc)
}
