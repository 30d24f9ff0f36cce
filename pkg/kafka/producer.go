package kafka

import (
	"context"
	"fmt"
	"sync"

	"seatgrid/pkg/backoff"
	kafka_config "seatgrid/pkg/kafka/config"
	"seatgrid/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

// FailedSink receives messages whose delivery attempts were exhausted.
// Implementations must be durable: a message handed to the sink is
// never dropped, it waits for manual follow-up.
type FailedSink interface {
	Save(ctx context.Context, msg Message, cause error) error
}

// Producer wraps a kafka-go writer with retry and a durable sink for
// undeliverable messages.
type Producer struct {
	writer *kafka.Writer
	topic  string
	policy backoff.Policy
	sink   FailedSink
	log    *logger.Logger
	closed bool
	mu     sync.RWMutex
}

func NewProducer(cfg *kafka_config.Config, topic string, policy backoff.Policy, sink FailedSink, log *logger.Logger) (*Producer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	var compression compress.Compression
	switch cfg.ProducerCompression {
	case "gzip":
		compression = compress.Gzip
	case "lz4":
		compression = compress.Lz4
	case "zstd":
		compression = compress.Zstd
	case "none":
		compression = compress.None
	default:
		compression = compress.Snappy
	}

	var requiredAcks kafka.RequiredAcks
	switch cfg.ProducerRequireAcks {
	case 0:
		requiredAcks = kafka.RequireNone
	case 1:
		requiredAcks = kafka.RequireOne
	default:
		requiredAcks = kafka.RequireAll
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Hash by key for per-seat ordering
		RequiredAcks: requiredAcks,
		Compression:  kafka.Compression(compression),
		BatchTimeout: cfg.ProducerBatchTimeout,
		// Retry is owned by the backoff policy, not the writer.
		MaxAttempts: 1,
		Logger:      kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error(fmt.Sprintf("kafka writer: "+msg, args...))
		}),
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		policy: policy,
		sink:   sink,
		log:    log,
	}, nil
}

// Publish delivers a message, retrying with capped exponential backoff.
// Leader-election-class broker errors get the stretched delay. When all
// attempts are exhausted the message goes to the failed sink and the
// last delivery error is returned.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrProducerClosed
	}
	p.mu.RUnlock()

	if msg.Key == "" {
		return ErrEmptyKey
	}
	if len(msg.Value) == 0 {
		return ErrEmptyValue
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Value,
		Time:  msg.Timestamp,
	}
	for k, v := range msg.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{
			Key:   k,
			Value: []byte(v),
		})
	}

	attempt := 0
	err := p.policy.Retry(ctx, func(ctx context.Context) error {
		attempt++
		writeErr := p.writer.WriteMessages(ctx, kafkaMsg)
		if writeErr != nil {
			p.log.Warn("Publish attempt failed",
				"topic", p.topic,
				"key", msg.Key,
				"attempt", attempt,
				"leader_election", IsLeaderElection(writeErr),
				"error", writeErr,
			)
		}
		return writeErr
	}, IsLeaderElection)
	if err == nil {
		return nil
	}

	if p.sink != nil {
		msg.Topic = p.topic
		if sinkErr := p.sink.Save(ctx, msg, err); sinkErr != nil {
			return fmt.Errorf("failed to hand message to sink: %v (delivery error: %w)", sinkErr, err)
		}
		p.log.Error("Message handed to failed sink after exhausted retries",
			"topic", p.topic,
			"key", msg.Key,
			"attempts", attempt,
			"error", err,
		)
	}

	return err
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.writer.Close()
}

// Stats returns writer statistics.
func (p *Producer) Stats() kafka.WriterStats {
	return p.writer.Stats()
}
