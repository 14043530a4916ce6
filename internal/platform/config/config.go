package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	liststr "efrn/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	ServiceName     string
	ShutdownTimeout time.Duration

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// Approvers is the allow-list for overrides. Empty means the default.
	Approvers []string
	// ApproverJWTSigningKey enables bearer verification on the override
	// route when set.
	ApproverJWTSigningKey string
	ApproverJWTIssuer     string
	ApproverJWTAudience   string
	LockTTL               time.Duration

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Policy PolicyOverrides
}

// RedisConfig enables the distributed employee lock and the shared
// transaction store when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TxTTL        time.Duration
}

// KafkaConfig enables the ledger event producer when Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string
	LedgerTopic string
	ClientID    string
}

// PolicyOverrides carries thresholds set through the environment. Nil fields
// keep the built-in defaults.
type PolicyOverrides struct {
	BlockedEmployees   []string
	ComplianceMaxUSD   *decimal.Decimal
	RiskMinScore       *int
	RiskAmountDivisor  *decimal.Decimal
	EscrowHoldRate     *decimal.Decimal
	EscrowMaxHoldUSD   *decimal.Decimal
	SettlementLimitUSD *decimal.Decimal
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var p parser
	cfg := Server{
		Addr:            envOr("EFRN_ADDR", ":8080"),
		ServiceName:     envOr("EFRN_SERVICE_NAME", "efrn-orchestrator"),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TxTTL:        p.duration("REDIS_TX_TTL", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     liststr.SplitList(os.Getenv("KAFKA_BROKERS")),
			LedgerTopic: envOr("KAFKA_LEDGER_TOPIC", "efrn.ledger"),
			ClientID:    envOr("KAFKA_CLIENT_ID", "efrn-orchestrator"),
		},
		Approvers:             liststr.SplitListUpper(os.Getenv("OVERRIDE_APPROVERS")),
		ApproverJWTSigningKey: os.Getenv("APPROVER_JWT_SIGNING_KEY"),
		ApproverJWTIssuer:     envOr("APPROVER_JWT_ISSUER", "efrn"),
		ApproverJWTAudience:   envOr("APPROVER_JWT_AUDIENCE", "efrn-override"),
		LockTTL:               p.duration("LOCK_TTL", 10*time.Second),
		RateLimitRequests:     p.integer("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:       p.duration("RATE_LIMIT_WINDOW", time.Minute),
		Policy: PolicyOverrides{
			BlockedEmployees:   liststr.SplitList(os.Getenv("BLOCKED_EMPLOYEES")),
			ComplianceMaxUSD:   p.optionalDecimal("COMPLIANCE_MAX_USD"),
			RiskMinScore:       p.optionalInt("RISK_MIN_SCORE"),
			RiskAmountDivisor:  p.optionalDecimal("RISK_AMOUNT_DIVISOR"),
			EscrowHoldRate:     p.optionalDecimal("ESCROW_HOLD_RATE"),
			EscrowMaxHoldUSD:   p.optionalDecimal("ESCROW_MAX_HOLD_USD"),
			SettlementLimitUSD: p.optionalDecimal("SETTLEMENT_LIMIT_USD"),
		},
	}
	if p.err != nil {
		return Server{}, p.err
	}
	return cfg, nil
}

// parser records the first malformed variable.
type parser struct {
	err error
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	if v := p.optionalInt(key); v != nil {
		return *v
	}
	return def
}

func (p *parser) optionalInt(key string) *int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return nil
	}
	return &n
}

func (p *parser) optionalDecimal(key string) *decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.fail(key, raw, err)
		return nil
	}
	return &d
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
