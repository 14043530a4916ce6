package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is what the steps need from the suite context.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetLastStatus() int
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers transaction, override and ledger steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &steps{tc: tc, employees: map[string]string{}}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		s.employees = map[string]string{}
		return ctx, nil
	})

	ctx.Step(`^the orchestrator is running$`, s.orchestratorIsRunning)
	ctx.Step(`^a fresh employee "([^"]*)"$`, s.freshEmployee)
	ctx.Step(`^"([^"]*)" submits a transaction of "([^"]*)" "([^"]*)"$`, s.submitTransaction)
	ctx.Step(`^"([^"]*)" overrides the latest "([^"]*)" transaction of "([^"]*)" with "([^"]*)"$`, s.submitOverride)
	ctx.Step(`^I verify the ledger$`, s.verifyLedger)

	ctx.Step(`^the response status should be (\d+)$`, s.statusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, s.errorCodeShouldBe)
	ctx.Step(`^the final status should be "([^"]*)"$`, s.fieldShouldEqual("final_status"))
	ctx.Step(`^the reason should be "([^"]*)"$`, s.fieldShouldEqual("reason"))
	ctx.Step(`^the trust score should be (\d+)$`, s.trustScoreShouldBe)
	ctx.Step(`^the steps should be "([^"]*)"$`, s.stepsShouldBe)
	ctx.Step(`^the ledger should be valid$`, s.ledgerShouldBeValid)
}

type steps struct {
	tc TestContext
	// employees maps scenario aliases to ids unique to this run, since the
	// server's ledger outlives a scenario.
	employees map[string]string
}

func (s *steps) orchestratorIsRunning(context.Context) error {
	if err := s.tc.GET("/health"); err != nil {
		return err
	}
	if s.tc.GetLastStatus() != 200 {
		return fmt.Errorf("health returned %d", s.tc.GetLastStatus())
	}
	return nil
}

func (s *steps) freshEmployee(_ context.Context, alias string) error {
	s.employees[alias] = fmt.Sprintf("%s-%08x", strings.ToUpper(alias), rand.Uint32())
	return nil
}

func (s *steps) employee(alias string) string {
	if id, ok := s.employees[alias]; ok {
		return id
	}
	return alias
}

func (s *steps) submitTransaction(_ context.Context, alias, amount, currency string) error {
	return s.tc.POST("/api/transaction", map[string]any{
		"employee": s.employee(alias),
		"amount":   amount,
		"currency": currency,
	})
}

func (s *steps) submitOverride(_ context.Context, approver, currency, alias, justification string) error {
	return s.tc.POST("/api/override", map[string]any{
		"employee":      s.employee(alias),
		"approver":      approver,
		"justification": justification,
		"currency":      currency,
	})
}

func (s *steps) verifyLedger(context.Context) error {
	return s.tc.GET("/api/ledger/verify")
}

func (s *steps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.GetLastStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d", want, got)
	}
	return nil
}

func (s *steps) errorCodeShouldBe(ctx context.Context, want string) error {
	return s.fieldShouldEqual("error")(ctx, want)
}

func (s *steps) fieldShouldEqual(field string) func(context.Context, string) error {
	return func(_ context.Context, want string) error {
		v, err := s.tc.GetResponseField(field)
		if err != nil {
			return err
		}
		if got := fmt.Sprint(v); got != want {
			return fmt.Errorf("expected %s %q, got %q", field, want, got)
		}
		return nil
	}
}

func (s *steps) trustScoreShouldBe(_ context.Context, want int) error {
	v, err := s.tc.GetResponseField("trust_score")
	if err != nil {
		return err
	}
	got, ok := v.(float64)
	if !ok || int(got) != want {
		return fmt.Errorf("expected trust_score %d, got %v", want, v)
	}
	return nil
}

func (s *steps) stepsShouldBe(_ context.Context, want string) error {
	v, err := s.tc.GetResponseField("steps")
	if err != nil {
		return err
	}
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("steps is not a list: %v", v)
	}
	agents := make([]string, 0, len(list))
	for _, item := range list {
		step, _ := item.(map[string]any)
		agents = append(agents, fmt.Sprint(step["agent"]))
	}
	if got := strings.Join(agents, ","); got != want {
		return fmt.Errorf("expected steps %s, got %s", want, got)
	}
	return nil
}

func (s *steps) ledgerShouldBeValid(context.Context) error {
	v, err := s.tc.GetResponseField("valid")
	if err != nil {
		return err
	}
	if valid, _ := v.(bool); !valid {
		msg, _ := s.tc.GetResponseField("message")
		return fmt.Errorf("ledger invalid: %v", msg)
	}
	return nil
}
