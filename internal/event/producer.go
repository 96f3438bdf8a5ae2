package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types published on the backtest topic.
const (
	TypeBacktestCompleted = "backtest.completed"
	TypeBacktestFailed    = "backtest.failed"
)

// BacktestEvent is the payload published when a run finishes.
type BacktestEvent struct {
	Type         string    `json:"type"`
	BacktestID   string    `json:"backtest_id,omitempty"`
	Name         string    `json:"name,omitempty"`
	StrategyName string    `json:"strategy_name"`
	Symbols      []string  `json:"symbols"`
	FinalEquity  float64   `json:"final_equity,omitempty"`
	TotalTrades  int       `json:"total_trades,omitempty"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Producer publishes backtest lifecycle events to Kafka.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer for the backtest topic
func NewProducer(brokers []string, topic, clientID string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Transport: &kafka.Transport{
			ClientID: clientID,
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

// Publish sends an event keyed by backtest ID.
func (p *Producer) Publish(ctx context.Context, event BacktestEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event",
			zap.String("type", event.Type),
			zap.Error(err))
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.BacktestID),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("type", event.Type),
			zap.String("backtest_id", event.BacktestID),
			zap.Error(err))
		return err
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
