// Package publisher ships audit events to Kafka. The publisher implements
// audit.Store with synchronous, fail-closed semantics: Append blocks until
// the broker acknowledges the write, and any produce error fails the
// operation that emitted the event.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "sealedger/pkg/platform/audit"
)

// DefaultTopic is the audit log topic.
const DefaultTopic = "sealedger.audit"

// KafkaPublisher produces one record per audit event, keyed by actor so a
// principal's actions stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures the publisher.
type Option func(*KafkaPublisher)

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(p *KafkaPublisher) { p.topic = topic }
}

// WithLogger sets a logger for non-fatal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) { p.logger = logger }
}

// New connects to the given brokers and ensures the audit topic exists.
func New(ctx context.Context, brokers []string, opts ...Option) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	p := &KafkaPublisher{client: client, topic: DefaultTopic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func (p *KafkaPublisher) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	// Already existing is fine; the topic may be provisioned out of band.
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic %q: %w", p.topic, resp.Err)
	}
	return nil
}

type wireEvent struct {
	Action            string `json:"action"`
	Timestamp         string `json:"timestamp"`
	Actor             string `json:"actor"`
	Subject           string `json:"subject,omitempty"`
	Category          string `json:"category,omitempty"`
	InspectionID      *int64 `json:"inspection_id,omitempty"`
	RecordsConsidered int    `json:"records_considered,omitempty"`
	RequestID         string `json:"request_id,omitempty"`
}

// Append publishes the event and waits for broker acknowledgement.
func (p *KafkaPublisher) Append(ctx context.Context, event audit.Event) error {
	we := wireEvent{
		Action:            string(event.Action),
		Timestamp:         event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Actor:             event.Actor.String(),
		Subject:           event.Subject.String(),
		Category:          event.Category,
		RecordsConsidered: event.RecordsConsidered,
		RequestID:         event.RequestID,
	}
	if event.HasInspection {
		iid := int64(event.InspectionID)
		we.InspectionID = &iid
	}
	payload, err := json.Marshal(we)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Actor.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Close flushes outstanding produces and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
