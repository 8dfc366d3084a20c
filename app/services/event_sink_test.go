package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogEventSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogEventSink(zap.New(core))

	sink.Emit(context.Background(), Event{Kind: EventEntrySent, TickID: "t1", TenantID: 3, EntryID: 9, Outcome: "sent"})
	sink.Emit(context.Background(), Event{Kind: EventEntryRetry, EntryID: 10, Error: "timeout"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, EventEntrySent, entries[0].Message)
	assert.Equal(t, "t1", entries[0].ContextMap()["tick_id"])
	assert.Equal(t, uint64(9), entries[0].ContextMap()["entry_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "timeout", entries[1].ContextMap()["error"])
}

func TestKafkaEventSink(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		assert.Equal(t, EventRenewalDispatched, e.Kind)
		assert.Equal(t, "d-1", e.DispatchID)
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewKafkaEventSink(producer, "events", zap.NewNop())
	sink.Emit(context.Background(), Event{Kind: EventRenewalDispatched, DispatchID: "d-1", TenantID: 7})
	// publish failures are logged, never returned
	sink.Emit(context.Background(), Event{Kind: EventRenewalDispatched})

	require.NoError(t, sink.Close())
}

func TestMultiAndMemoryEventSink(t *testing.T) {
	a, b := NewMemoryEventSink(), NewMemoryEventSink()
	multi := MultiEventSink{a, nil, b}

	multi.Emit(context.Background(), Event{Kind: EventEntryEnqueued})
	multi.Emit(context.Background(), Event{Kind: EventEntrySkipped})

	assert.Len(t, a.Events(), 2)
	assert.Len(t, b.ByKind(EventEntrySkipped), 1)
}
