// Package kafka delivers ledger events to a Kafka-compatible broker.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"

	"efrn/internal/platform/config"
	"efrn/pkg/platform/audit"
)

const headerEventKind = "efrn-event-kind"

// Producer is an audit.Sink that writes one record per event, keyed by
// employee so each employee's entries stay ordered within a partition.
type Producer struct {
	client    *kgo.Client
	topic     string
	logger    *slog.Logger
	published prometheus.Counter
}

// Option configures a Producer.
type Option func(*Producer)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) { p.logger = logger }
}

// WithRegistry registers the published counter on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(p *Producer) {
		p.published = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "efrn_ledger_events_published_total",
			Help: "Ledger events acknowledged by the broker",
		})
	}
}

// NewProducer connects to the configured seed brokers.
func NewProducer(cfg config.KafkaConfig, opts ...Option) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.LedgerTopic == "" {
		return nil, fmt.Errorf("kafka: ledger topic is required")
	}

	clientOpts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.LedgerTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		clientOpts = append(clientOpts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}

	p := &Producer{
		client: client,
		topic:  cfg.LedgerTopic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name implements audit.Sink.
func (p *Producer) Name() string { return "kafka" }

// Deliver implements audit.Sink. The batch is produced synchronously and
// fails as a whole on the first broker error.
func (p *Producer) Deliver(ctx context.Context, events []audit.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		rec, err := toRecord(e)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce %d events to %s: %w", len(records), p.topic, err)
	}
	if p.published != nil {
		p.published.Add(float64(len(records)))
	}
	return nil
}

// Ping checks that at least one broker answers.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.WarnContext(ctx, "kafka flush on close failed", "error", err)
	}
	p.client.Close()
}

func toRecord(e audit.Event) (*kgo.Record, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("kafka: encode event %d: %w", e.Sequence, err)
	}
	return &kgo.Record{
		Key:   []byte(e.Employee),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: headerEventKind, Value: []byte(e.Kind)},
		},
	}, nil
}
