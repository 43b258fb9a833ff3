package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_PublishTransaction(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisherWithWriter(writer)
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := publisher.PublishTransaction(context.Background(), domain.Transaction{
		TransactionID: 42,
		AccountID:     "acc-1",
		Amount:        decimal.NewFromInt(-10),
		BalanceAfter:  decimal.NewFromInt(90),
		Kind:          domain.KindBlogGeneration,
		CreatedAt:     createdAt,
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "acc-1", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "transaction-id", Value: []byte("42")})

	var event TransactionEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventTransactionCommitted, event.EventType)
	assert.Equal(t, int64(42), event.TransactionID)
	assert.True(t, event.Amount.Equal(decimal.NewFromInt(-10)))
	assert.True(t, event.BalanceAfter.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, domain.KindBlogGeneration, event.Kind)
	assert.Nil(t, event.RefundOf)
	assert.True(t, event.OccurredAt.Equal(createdAt))
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unavailable")}
	publisher := newKafkaPublisherWithWriter(writer)

	err := publisher.PublishTransaction(context.Background(), domain.Transaction{TransactionID: 7, AccountID: "acc-1"})
	assert.ErrorContains(t, err, "broker unavailable")

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}
