package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efrn/internal/agents"
	"efrn/internal/ledger"
	ledgermemory "efrn/internal/ledger/store/memory"
	"efrn/internal/orchestrator"
	orchmetrics "efrn/internal/orchestrator/metrics"
	"efrn/internal/override"
	"efrn/internal/pipeline"
	"efrn/internal/transaction/models"
	"efrn/internal/transaction/store"
	id "efrn/pkg/domain"
	dErrors "efrn/pkg/domain-errors"
	"efrn/pkg/platform/keylock"
	bdd "efrn/pkg/testutil"
)

type harness struct {
	svc     *orchestrator.Service
	ledger  *ledger.Service
	metrics *orchmetrics.Metrics
}

func newHarness(t *testing.T, policy agents.Policy) *harness {
	t.Helper()
	m := orchmetrics.NewWithRegistry(prometheus.NewRegistry())
	locker := keylock.NewMemory()
	pipe := pipeline.New(agents.NewSet(policy), pipeline.WithRecorder(m))
	led := ledger.NewService(ledgermemory.New(), ledger.WithMetrics(m))
	txs := store.NewInMemory()
	ovr := override.New(txs, led, pipe, locker, override.WithMetrics(m))
	return &harness{
		svc:     orchestrator.New(pipe, led, txs, ovr, locker, orchestrator.WithMetrics(m)),
		ledger:  led,
		metrics: m,
	}
}

func create(employee string, amount string, currency string) orchestrator.CreateRequest {
	return orchestrator.CreateRequest{
		Employee: employee,
		Amount:   decimal.RequireFromString(amount),
		Currency: currency,
	}
}

func stepAgents(tx *models.Transaction) []models.Agent {
	out := make([]models.Agent, len(tx.Steps))
	for i, s := range tx.Steps {
		out[i] = s.Agent
	}
	return out
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, agents.DefaultPolicy())

	bdd.Given(t, "a small USD transfer", func(t *testing.T) {
		tx, err := h.svc.CreateTransaction(ctx, create("EMP001", "1200", "USD"))
		require.NoError(t, err)

		bdd.Then(t, "all five agents pass and the ledger records CLEARED", func(t *testing.T) {
			assert.Equal(t, models.StatusCleared, tx.FinalStatus)
			assert.Equal(t, agents.Order, stepAgents(tx))
			for _, s := range tx.Steps {
				assert.Equal(t, models.StepPassed, s.Status, s.Agent)
			}
			assert.Equal(t, 94, *tx.TrustScore)
			assert.Empty(t, tx.Reason)

			entries, err := h.svc.ListLedger(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, models.StatusCleared, entries[0].Status)
			assert.Equal(t, tx.ID, entries[0].TransactionID)
		})
	})

	var rejected *models.Transaction
	bdd.Given(t, "a large USD transfer exceeding the risk threshold", func(t *testing.T) {
		var err error
		rejected, err = h.svc.CreateTransaction(ctx, create("EMP999", "20000", "USD"))
		require.NoError(t, err)

		bdd.Then(t, "compliance passes, risk rejects and the run halts", func(t *testing.T) {
			assert.Equal(t, models.StatusRejected, rejected.FinalStatus)
			require.Len(t, rejected.Steps, 2)
			assert.Equal(t, models.AgentCompliance, rejected.Steps[0].Agent)
			assert.Equal(t, models.StepPassed, rejected.Steps[0].Status)
			assert.Equal(t, models.AgentRisk, rejected.Steps[1].Agent)
			assert.Equal(t, models.StepRejected, rejected.Steps[1].Status)
			assert.Equal(t, rejected.Steps[1].Detail, rejected.Reason)
		})
	})

	bdd.Given(t, "the risk officer overrides the rejection", func(t *testing.T) {
		tx, err := h.svc.SubmitOverride(ctx, override.Request{
			Employee:      "EMP999",
			Approver:      "RISK_OFFICER",
			Justification: "manager approved",
			Currency:      "USD",
		})
		require.NoError(t, err)

		bdd.Then(t, "downstream agents re-run and the transaction clears by override", func(t *testing.T) {
			assert.Equal(t, models.StatusClearedByOverride, tx.FinalStatus)
			assert.Equal(t, []models.Agent{
				models.AgentCompliance, models.AgentRisk, models.AgentOverrideRisk,
				models.AgentEscrow, models.AgentSettlement, models.AgentAudit,
			}, stepAgents(tx))
			assert.Equal(t, models.StepOverridden, tx.Steps[2].Status)
			assert.Equal(t, rejected.Steps, tx.Steps[:2], "original steps are a prefix")
			assert.Equal(t, *rejected.TrustScore, *tx.TrustScore, "trust score unchanged")
		})

		bdd.Then(t, "the ledger holds REJECTED then CLEARED_BY_OVERRIDE for the employee", func(t *testing.T) {
			entries, err := h.svc.ListLedger(ctx)
			require.NoError(t, err)
			var statuses []models.FinalStatus
			for _, e := range entries {
				if e.Employee == "EMP999" {
					statuses = append(statuses, e.Status)
				}
			}
			assert.Equal(t, []models.FinalStatus{models.StatusRejected, models.StatusClearedByOverride}, statuses)
		})
	})

	bdd.Given(t, "an override against a cleared transaction", func(t *testing.T) {
		before, err := h.svc.ListLedger(ctx)
		require.NoError(t, err)

		_, err = h.svc.SubmitOverride(ctx, override.Request{
			Employee: "EMP001", Approver: "RISK_OFFICER", Justification: "x", Currency: "USD",
		})

		bdd.Then(t, "it fails as not overridable and the ledger is unchanged", func(t *testing.T) {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeNotOverridable))
			after, err := h.svc.ListLedger(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	})

	bdd.Given(t, "an override with an empty justification", func(t *testing.T) {
		fresh, err := h.svc.CreateTransaction(ctx, create("EMP777", "20000", "USD"))
		require.NoError(t, err)
		require.Equal(t, models.StatusRejected, fresh.FinalStatus)
		before, err := h.svc.ListLedger(ctx)
		require.NoError(t, err)

		_, err = h.svc.SubmitOverride(ctx, override.Request{
			Employee: "EMP777", Approver: "RISK_OFFICER", Justification: "", Currency: "USD",
		})

		bdd.Then(t, "it fails with invalid justification and nothing is appended", func(t *testing.T) {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidJustification))
			after, err := h.svc.ListLedger(ctx)
			require.NoError(t, err)
			assert.Len(t, after, len(before))
		})
	})

	bdd.Then(t, "the ledger chain verifies", func(t *testing.T) {
		res, err := h.svc.VerifyLedger(ctx)
		require.NoError(t, err)
		assert.True(t, res.Valid, res.Message)
		assert.Equal(t, 4, res.Entries)
	})
}

func TestCreateTransactionValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, agents.DefaultPolicy())

	tests := []struct {
		name string
		req  orchestrator.CreateRequest
	}{
		{"empty employee", create("", "10", "USD")},
		{"blank employee", create("   ", "10", "USD")},
		{"zero amount", create("EMP001", "0", "USD")},
		{"negative amount", create("EMP001", "-5", "USD")},
		{"unrecognized currency", create("EMP001", "10", "XYZ")},
		{"empty currency", create("EMP001", "10", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := h.svc.CreateTransaction(ctx, tt.req)
			require.Error(t, err)
			assert.Nil(t, tx)
			assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
		})
	}

	entries, err := h.svc.ListLedger(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "validation failures write nothing")
}

func TestCreateTransactionNormalizesCurrency(t *testing.T) {
	h := newHarness(t, agents.DefaultPolicy())
	tx, err := h.svc.CreateTransaction(context.Background(), create(" EMP001 ", "100", " eur "))
	require.NoError(t, err)
	assert.Equal(t, id.CurrencyEUR, tx.Currency)
	assert.Equal(t, id.EmployeeID("EMP001"), tx.Employee)
}

func TestEveryRecognizedCurrencyIsProcessed(t *testing.T) {
	h := newHarness(t, agents.DefaultPolicy())
	for _, c := range id.RecognizedCurrencies() {
		t.Run(c.String(), func(t *testing.T) {
			tx, err := h.svc.CreateTransaction(context.Background(), create("EMP-"+c.String(), "100", c.String()))
			require.NoError(t, err)
			assert.Equal(t, models.StatusCleared, tx.FinalStatus)
		})
	}
}

func TestAgentFaultWritesNothing(t *testing.T) {
	ctx := context.Background()
	policy := agents.DefaultPolicy()
	delete(policy.USDRates, id.CurrencyNGN)
	h := newHarness(t, policy)

	_, err := h.svc.CreateTransaction(ctx, create("EMP001", "100", "NGN"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAgentFault))

	entries, err := h.svc.ListLedger(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = h.svc.SubmitOverride(ctx, override.Request{
		Employee: "EMP001", Approver: "RISK_OFFICER", Justification: "x", Currency: "NGN",
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "faulted transaction was discarded")
}

func TestFirstRunProperties(t *testing.T) {
	ctx := context.Background()
	policy := agents.DefaultPolicy()
	policy.BlockedEmployees = map[id.EmployeeID]bool{"EMP666": true}
	h := newHarness(t, policy)

	cases := []orchestrator.CreateRequest{
		create("EMP001", "1", "USD"),
		create("EMP002", "9999.99", "USD"),
		create("EMP003", "20000", "USD"),
		create("EMP004", "120000", "JPY"),
		create("EMP666", "5", "USD"),
		create("EMP005", "300000", "USD"),
		create("EMP006", "5000", "GBP"),
	}
	for _, req := range cases {
		t.Run(req.Employee+" "+req.Amount.String()+" "+req.Currency, func(t *testing.T) {
			tx, err := h.svc.CreateTransaction(ctx, req)
			require.NoError(t, err)

			switch tx.FinalStatus {
			case models.StatusCleared:
				assert.Equal(t, agents.Order, stepAgents(tx))
			case models.StatusRejected:
				last := tx.Steps[len(tx.Steps)-1]
				assert.Equal(t, models.StepRejected, last.Status)
				for _, s := range tx.Steps[:len(tx.Steps)-1] {
					assert.Equal(t, models.StepPassed, s.Status)
				}
				assert.Equal(t, agents.Order[:len(tx.Steps)], stepAgents(tx))
			default:
				t.Fatalf("unexpected final status %s", tx.FinalStatus)
			}
		})
	}
}

func TestListLedgerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, agents.DefaultPolicy())
	for i := 0; i < 3; i++ {
		_, err := h.svc.CreateTransaction(ctx, create(fmt.Sprintf("EMP%d", i), "100", "USD"))
		require.NoError(t, err)
	}

	first, err := h.svc.ListLedger(ctx)
	require.NoError(t, err)
	second, err := h.svc.ListLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLedgerOnlyGrows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, agents.DefaultPolicy())

	var snapshot []ledger.Entry
	ops := []func() error{
		func() error { _, err := h.svc.CreateTransaction(ctx, create("EMP999", "20000", "USD")); return err },
		func() error { _, err := h.svc.CreateTransaction(ctx, create("EMP001", "50", "USD")); return err },
		func() error {
			_, err := h.svc.SubmitOverride(ctx, override.Request{
				Employee: "EMP999", Approver: "RISK_OFFICER", Justification: "ok", Currency: "USD",
			})
			return err
		},
		func() error {
			_, err := h.svc.SubmitOverride(ctx, override.Request{
				Employee: "EMP999", Approver: "RISK_OFFICER", Justification: "again", Currency: "USD",
			})
			return err
		},
		func() error { _, err := h.svc.CreateTransaction(ctx, create("", "1", "USD")); return err },
	}
	for _, op := range ops {
		_ = op()
		current, err := h.svc.ListLedger(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(current), len(snapshot))
		assert.Equal(t, snapshot, current[:len(snapshot)], "existing entries unchanged")
		snapshot = current
	}
	assert.Len(t, snapshot, 3)
}

func TestPriorRejectionsLowerLaterScores(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, agents.DefaultPolicy())

	_, err := h.svc.CreateTransaction(ctx, create("EMP999", "20000", "USD"))
	require.NoError(t, err)
	tx, err := h.svc.CreateTransaction(ctx, create("EMP999", "1200", "USD"))
	require.NoError(t, err)
	assert.Equal(t, 89, *tx.TrustScore)
}

func TestConcurrentEmployees(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, agents.DefaultPolicy())
	const employees = 20
	const perEmployee = 5

	var wg sync.WaitGroup
	for e := 0; e < employees; e++ {
		for i := 0; i < perEmployee; i++ {
			wg.Add(1)
			go func(e, i int) {
				defer wg.Done()
				amount := "100"
				if i%2 == 1 {
					amount = "20000"
				}
				_, err := h.svc.CreateTransaction(ctx, create(fmt.Sprintf("EMP%03d", e), amount, "USD"))
				assert.NoError(t, err)
			}(e, i)
		}
	}
	wg.Wait()

	entries, err := h.svc.ListLedger(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, employees*perEmployee)
	res, err := h.svc.VerifyLedger(ctx)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Message)

	assert.Equal(t, float64(employees*perEmployee),
		testutil.ToFloat64(h.metrics.Transactions.WithLabelValues("CLEARED"))+
			testutil.ToFloat64(h.metrics.Transactions.WithLabelValues("REJECTED")))
}

func TestConcurrentOverridesApplyOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, agents.DefaultPolicy())
	_, err := h.svc.CreateTransaction(ctx, create("EMP999", "20000", "USD"))
	require.NoError(t, err)

	const goroutines = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refusals  int
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.SubmitOverride(ctx, override.Request{
				Employee: "EMP999", Approver: "RISK_OFFICER", Justification: "approved", Currency: "USD",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if dErrors.HasCode(err, dErrors.CodeNotOverridable) {
				refusals++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, goroutines-1, refusals)
	entries, err := h.svc.ListLedger(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConcurrentCreateAndOverrideSameEmployee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, agents.DefaultPolicy())
	rejected, err := h.svc.CreateTransaction(ctx, create("EMP999", "20000", "USD"))
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.FinalStatus)

	const creates = 8
	const overrides = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refusals  int
	)
	for i := 0; i < creates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := h.svc.CreateTransaction(ctx, create("EMP999", "100", "USD"))
			if assert.NoError(t, err) {
				assert.Equal(t, models.StatusCleared, tx.FinalStatus)
			}
		}()
	}
	for i := 0; i < overrides; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := h.svc.SubmitOverride(ctx, override.Request{
				Employee: "EMP999", Approver: "RISK_OFFICER", Justification: "approved", Currency: "USD",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
				assert.Equal(t, rejected.ID, tx.ID)
			case dErrors.HasCode(err, dErrors.CodeNotOverridable):
				refusals++
			default:
				t.Errorf("unexpected override error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "the single rejection is overridden once, whatever the interleaving")
	assert.Equal(t, overrides-1, refusals)

	entries, err := h.svc.ListLedger(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1+creates+1)
	byStatus := map[models.FinalStatus]int{}
	for _, e := range entries {
		byStatus[e.Status]++
	}
	assert.Equal(t, map[models.FinalStatus]int{
		models.StatusRejected:          1,
		models.StatusCleared:           creates,
		models.StatusClearedByOverride: 1,
	}, byStatus)

	res, err := h.svc.VerifyLedger(ctx)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Message)
}

// expiringLocker serializes like the memory locker but reports every release
// as failed, the way a redis lock does once its TTL has lapsed.
type expiringLocker struct {
	inner *keylock.Memory
}

type expiredHandle struct {
	inner keylock.Handle
}

func (l expiringLocker) Acquire(ctx context.Context, key string) (keylock.Handle, error) {
	h, err := l.inner.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	return expiredHandle{inner: h}, nil
}

func (h expiredHandle) Unlock(ctx context.Context) error {
	_ = h.inner.Unlock(ctx)
	return errors.New("release lock: lock expired before release")
}

func TestReleaseFailureAfterCommitIsNotAnError(t *testing.T) {
	ctx := context.Background()
	locker := expiringLocker{inner: keylock.NewMemory()}
	pipe := pipeline.New(agents.NewSet(agents.DefaultPolicy()))
	led := ledger.NewService(ledgermemory.New())
	txs := store.NewInMemory()
	ovr := override.New(txs, led, pipe, locker)
	svc := orchestrator.New(pipe, led, txs, ovr, locker)

	tx, err := svc.CreateTransaction(ctx, create("EMP999", "20000", "USD"))
	require.NoError(t, err, "the transaction is committed; a lost lock must not make the caller retry")
	assert.Equal(t, models.StatusRejected, tx.FinalStatus)

	overridden, err := svc.SubmitOverride(ctx, override.Request{
		Employee: "EMP999", Approver: "RISK_OFFICER", Justification: "approved", Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClearedByOverride, overridden.FinalStatus)

	entries, err := svc.ListLedger(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
