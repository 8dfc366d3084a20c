package services

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Event kinds emitted by the scheduler and the renewal dispatcher
const (
	EventTickCompleted     = "tick_completed"
	EventReminderSkipped   = "reminder_skipped"
	EventEntryEnqueued     = "entry_enqueued"
	EventEntrySkipped      = "entry_skipped"
	EventEntrySent         = "entry_sent"
	EventEntryRetry        = "entry_retry"
	EventEntryFailed       = "entry_failed"
	EventEntriesSwept      = "entries_swept"
	EventRenewalDispatched = "renewal_dispatched"
)

// Event is a structured, queryable record of one automation outcome
type Event struct {
	Kind       string         `json:"kind"`
	At         time.Time      `json:"at"`
	TickID     string         `json:"tick_id,omitempty"`
	Job        string         `json:"job,omitempty"`
	DispatchID string         `json:"dispatch_id,omitempty"`
	TenantID   uint           `json:"tenant_id,omitempty"`
	EntryID    uint           `json:"entry_id,omitempty"`
	ReminderID uint           `json:"reminder_id,omitempty"`
	ClientID   uint           `json:"client_id,omitempty"`
	Outcome    string         `json:"outcome,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Attempts   int            `json:"attempts,omitempty"`
	Error      string         `json:"error,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// EventSink receives automation events; implementations must not block callers for long
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// LogEventSink writes events to the structured logger
type LogEventSink struct {
	logger *zap.Logger
}

func NewLogEventSink(logger *zap.Logger) *LogEventSink {
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) Emit(_ context.Context, e Event) {
	fields := []zap.Field{zap.String("event", e.Kind)}
	if e.TickID != "" {
		fields = append(fields, zap.String("tick_id", e.TickID))
	}
	if e.Job != "" {
		fields = append(fields, zap.String("job", e.Job))
	}
	if e.DispatchID != "" {
		fields = append(fields, zap.String("dispatch_id", e.DispatchID))
	}
	if e.TenantID != 0 {
		fields = append(fields, zap.Uint("tenant_id", e.TenantID))
	}
	if e.EntryID != 0 {
		fields = append(fields, zap.Uint("entry_id", e.EntryID))
	}
	if e.ReminderID != 0 {
		fields = append(fields, zap.Uint("reminder_id", e.ReminderID))
	}
	if e.ClientID != 0 {
		fields = append(fields, zap.Uint("client_id", e.ClientID))
	}
	if e.Outcome != "" {
		fields = append(fields, zap.String("outcome", e.Outcome))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	if e.Provider != "" {
		fields = append(fields, zap.String("provider", e.Provider))
	}
	if e.Attempts != 0 {
		fields = append(fields, zap.Int("attempts", e.Attempts))
	}
	if len(e.Fields) > 0 {
		fields = append(fields, zap.Any("fields", e.Fields))
	}

	if e.Error != "" {
		s.logger.Warn(e.Kind, append(fields, zap.String("error", e.Error))...)
		return
	}
	s.logger.Info(e.Kind, fields...)
}

// KafkaEventSink publishes events as JSON to a Kafka topic
type KafkaEventSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaProducer builds an idempotent producer that waits for all in-sync replicas
func NewKafkaProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return sarama.NewSyncProducer(brokers, cfg)
}

func NewKafkaEventSink(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaEventSink {
	return &KafkaEventSink{producer: producer, topic: topic, logger: logger}
}

func (s *KafkaEventSink) Emit(_ context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("failed to encode event", zap.String("event", e.Kind), zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(payload),
	}
	if e.TenantID != 0 {
		msg.Key = sarama.StringEncoder(strconv.FormatUint(uint64(e.TenantID), 10))
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event", e.Kind), zap.Error(err))
	}
}

// Close releases the producer
func (s *KafkaEventSink) Close() error {
	return s.producer.Close()
}

// MultiEventSink fans events out to several sinks
type MultiEventSink []EventSink

func (m MultiEventSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}

// MemoryEventSink records events in memory for tests
type MemoryEventSink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventSink() *MemoryEventSink {
	return &MemoryEventSink{}
}

func (s *MemoryEventSink) Emit(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of recorded events
func (s *MemoryEventSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByKind returns recorded events of one kind
func (s *MemoryEventSink) ByKind(kind string) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
