package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "efrn.ledger", cfg.Kafka.LedgerTopic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Approvers)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Nil(t, cfg.Policy.RiskMinScore)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("EFRN_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("OVERRIDE_APPROVERS", "RISK_OFFICER,cfo")
	t.Setenv("LOCK_TTL", "3s")
	t.Setenv("RISK_MIN_SCORE", "60")
	t.Setenv("ESCROW_HOLD_RATE", "0.05")
	t.Setenv("BLOCKED_EMPLOYEES", "emp-x")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"RISK_OFFICER", "CFO"}, cfg.Approvers)
	assert.Equal(t, 3*time.Second, cfg.LockTTL)
	require.NotNil(t, cfg.Policy.RiskMinScore)
	assert.Equal(t, 60, *cfg.Policy.RiskMinScore)
	require.NotNil(t, cfg.Policy.EscrowHoldRate)
	assert.Equal(t, "0.05", cfg.Policy.EscrowHoldRate.String())
	assert.Equal(t, []string{"emp-x"}, cfg.Policy.BlockedEmployees)
}

func TestFromEnv_Malformed(t *testing.T) {
	t.Setenv("LOCK_TTL", "soon")
	t.Setenv("RISK_MIN_SCORE", "high")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCK_TTL")
}
