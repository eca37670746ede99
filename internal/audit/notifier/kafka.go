package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"custodia/internal/audit/models"
)

// DefaultAlertTopic is where security alerts land unless overridden.
const DefaultAlertTopic = "custodia.security-alerts"

// KafkaSink publishes alert-worthy audit entries to a Kafka topic so a SIEM
// or pager pipeline can consume them. Delivery is at-least-once; the audit
// store remains the system of record regardless of what happens here.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// KafkaSinkConfig holds the sink's connection settings.
type KafkaSinkConfig struct {
	Brokers         string
	Topic           string
	DeliveryTimeout time.Duration
}

// NewKafkaSink creates a sink connected to the given brokers.
func NewKafkaSink(cfg KafkaSinkConfig, logger *slog.Logger) (*KafkaSink, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultAlertTopic
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(timeout),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

// alertPayload is the wire shape of one published alert.
type alertPayload struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	EventType models.EventType `json:"eventType"`
	Severity  models.Severity  `json:"severity"`
	UserID    string           `json:"userId,omitempty"`
	Action    string           `json:"action"`
	Resource  string           `json:"resource"`
	Result    models.Result    `json:"result"`
	Error     string           `json:"error,omitempty"`
}

// Notify publishes the entry keyed by user so per-user alerts stay ordered.
// Failures are logged and dropped; they must never propagate back into the
// audit write path.
func (s *KafkaSink) Notify(ctx context.Context, entry *models.Entry) {
	value, err := json.Marshal(alertPayload{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		EventType: entry.EventType,
		Severity:  entry.Severity,
		UserID:    entry.UserID,
		Action:    entry.Action,
		Resource:  entry.Resource,
		Result:    entry.Result,
		Error:     entry.ErrorMessage,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode security alert", "entry_id", entry.ID, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(entry.UserID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish security alert",
			"entry_id", entry.ID,
			"topic", s.topic,
			"error", err,
		)
	}
}

// Ping verifies broker connectivity, used by the readiness probe.
func (s *KafkaSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close flushes buffered records and releases the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
