// Package kafka publishes post-commit transaction events. Delivery is best
// effort; the engine logs and continues when a publish fails.
package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tinoosan/pointledger/internal/point"
)

// Publisher writes transaction_completed events, keyed by user id so one
// user's events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher constructs a writer against the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

type transactionCompleted struct {
	SequenceID int64     `json:"sequence_id"`
	UserID     int64     `json:"user_id"`
	Kind       string    `json:"kind"`
	Amount     int64     `json:"amount"`
	Balance    int64     `json:"balance"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TransactionCompleted implements ledger.Publisher.
func (p *Publisher) TransactionCompleted(ctx context.Context, rec point.HistoryRecord, balance int64) error {
	data, err := json.Marshal(transactionCompleted{
		SequenceID: rec.SequenceID,
		UserID:     rec.UserID,
		Kind:       string(rec.Kind),
		Amount:     rec.Amount,
		Balance:    balance,
		OccurredAt: rec.Timestamp,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(rec.UserID, 10)),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error { return p.writer.Close() }
