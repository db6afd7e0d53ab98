// Package relay publishes committed audit records to Kafka for downstream
// consumers (SIEM, long-term archival). The durable trail lives in the audit
// store; the relay is fan-out only, so a Kafka outage never blocks a write.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/r16a/metis/internal/audit"
	auditmetrics "github.com/r16a/metis/internal/audit/metrics"
)

// Producer is the subset of kgo.Client the relay needs; tests swap in a
// capture fake.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Relay consumes appended audit records from the writer's sink channel and
// produces them to a Kafka topic.
type Relay struct {
	producer Producer
	inbox    <-chan audit.Record
	topic    string
	logger   *slog.Logger
	metrics  *auditmetrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func New(producer Producer, inbox <-chan audit.Record, topic string, opts ...Option) *Relay {
	r := &Relay{
		producer: producer,
		inbox:    inbox,
		topic:    topic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewClient builds a produce-only Kafka client for the relay.
func NewClient(brokers []string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
	)
}

// Run drains the inbox until the context is cancelled. Publish failures are
// logged and counted; the record is already durable in the store, so the
// relay never retries into a blocked pipeline.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record := <-r.inbox:
			r.publish(ctx, record)
		}
	}
}

func (r *Relay) publish(ctx context.Context, record audit.Record) {
	payload, err := json.Marshal(record)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to marshal audit record for relay",
			"record_id", record.ID,
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.RelayFailures.Inc()
		}
		return
	}

	kr := &kgo.Record{
		Topic: r.topic,
		Key:   []byte(record.TenantID),
		Value: payload,
	}
	r.producer.Produce(ctx, kr, func(_ *kgo.Record, err error) {
		if err != nil {
			r.logger.Error("failed to publish audit record",
				"record_id", record.ID,
				"error", err,
			)
			if r.metrics != nil {
				r.metrics.RelayFailures.Inc()
			}
			return
		}
		if r.metrics != nil {
			r.metrics.RelayPublished.Inc()
		}
	})
}
