// Package events publishes committed ledger transactions to other systems.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// EventTransactionCommitted is the event type of every published message.
const EventTransactionCommitted = "ledger.transaction.committed"

// TransactionEvent is the JSON payload of a committed transaction.
type TransactionEvent struct {
	EventType     string               `json:"eventType"`
	TransactionID int64                `json:"transactionId"`
	AccountID     string               `json:"accountId"`
	Amount        decimal.Decimal      `json:"amount"`
	BalanceAfter  decimal.Decimal      `json:"balanceAfter"`
	Kind          domain.OperationKind `json:"kind"`
	RefundOf      *int64               `json:"refundOf,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// NewTransactionEvent builds the event for a committed transaction.
func NewTransactionEvent(txn domain.Transaction) TransactionEvent {
	return TransactionEvent{
		EventType:     EventTransactionCommitted,
		TransactionID: txn.TransactionID,
		AccountID:     txn.AccountID,
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		Kind:          txn.Kind,
		RefundOf:      txn.RefundOf,
		OccurredAt:    txn.CreatedAt.UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per committed transaction. Messages are keyed by
// account id so the events of one account stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

var _ portssvc.LedgerEventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func newKafkaPublisherWithWriter(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// PublishTransaction sends the committed transaction event.
func (p *KafkaPublisher) PublishTransaction(ctx context.Context, txn domain.Transaction) error {
	payload, err := json.Marshal(NewTransactionEvent(txn))
	if err != nil {
		return fmt.Errorf("failed to encode transaction event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(txn.AccountID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventTransactionCommitted)},
			{Key: "transaction-id", Value: []byte(strconv.FormatInt(txn.TransactionID, 10))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish transaction %d: %w", txn.TransactionID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. It is used when no brokers are configured.
type NoopPublisher struct{}

var _ portssvc.LedgerEventPublisher = NoopPublisher{}

func (NoopPublisher) PublishTransaction(context.Context, domain.Transaction) error { return nil }

func (NoopPublisher) Close() error { return nil }
