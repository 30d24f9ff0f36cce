package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"seatgrid/pkg/backoff"
	kafka_config "seatgrid/pkg/kafka/config"
	"seatgrid/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Consumer pulls messages off a consumer group with at-least-once
// semantics. Connection and subscription are driven through an explicit
// state machine so readiness is queryable and reconnects follow one
// path instead of ad-hoc flags.
type Consumer struct {
	cfg     *kafka_config.Config
	topic   string
	groupID string
	handler MessageHandler

	policy               backoff.Policy
	subscribeInterval    time.Duration
	subscribeMaxAttempts int

	sm     *ConnStateMachine
	reader groupReader
	log    *logger.Logger
	closed bool
	mu     sync.RWMutex
}

// groupReader is the slice of kafka.Reader the consume loop needs.
type groupReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerOptions struct {
	Policy               backoff.Policy
	SubscribeInterval    time.Duration
	SubscribeMaxAttempts int
}

func NewConsumer(cfg *kafka_config.Config, topic, groupID string, handler MessageHandler, opts ConsumerOptions, log *logger.Logger) (*Consumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}
	if opts.SubscribeInterval <= 0 {
		return nil, fmt.Errorf("subscribe interval must be positive")
	}
	if opts.SubscribeMaxAttempts <= 0 {
		return nil, fmt.Errorf("subscribe max attempts must be positive")
	}

	return &Consumer{
		cfg:                  cfg,
		topic:                topic,
		groupID:              groupID,
		handler:              handler,
		policy:               opts.Policy,
		subscribeInterval:    opts.SubscribeInterval,
		subscribeMaxAttempts: opts.SubscribeMaxAttempts,
		sm:                   NewConnStateMachine(),
		log:                  log,
	}, nil
}

// State exposes the connection state machine's current state.
func (c *Consumer) State() ConnState {
	return c.sm.State()
}

// Start connects, subscribes and consumes until ctx is cancelled or the
// consumer is closed. Broker loss mid-stream, and a message whose
// outcome could not be recorded, drop the machine back to Disconnected
// and re-enter the connect path.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return ErrConsumerClosed
		}
		c.mu.RUnlock()

		if err := c.connect(ctx); err != nil {
			return err
		}
		if err := c.subscribe(ctx); err != nil {
			return err
		}

		err := c.run(ctx)
		if err != nil {
			return err
		}
		// run returned nil: connection dropped, reconnect and refetch
		// from the last committed offset.
		c.log.Warn("Consumer dropped, reconnecting",
			"topic", c.topic,
			"group_id", c.groupID,
		)
	}
}

// connect verifies the broker is reachable, with capped exponential
// backoff. Leader-election errors get the stretched delay.
func (c *Consumer) connect(ctx context.Context) error {
	if err := c.sm.To(Connecting); err != nil {
		return err
	}

	err := c.policy.Retry(ctx, func(ctx context.Context) error {
		conn, dialErr := kafka.DialContext(ctx, "tcp", c.cfg.Brokers[0])
		if dialErr != nil {
			c.log.Warn("Broker dial failed", "broker", c.cfg.Brokers[0], "error", dialErr)
			return dialErr
		}
		return conn.Close()
	}, IsLeaderElection)
	if err != nil {
		_ = c.sm.To(Disconnected)
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	return c.sm.To(Connected)
}

// subscribe waits for the topic to have readable partitions, retrying
// on a fixed interval up to the configured attempt cap, then creates
// the group reader.
func (c *Consumer) subscribe(ctx context.Context) error {
	if err := c.sm.To(Subscribing); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= c.subscribeMaxAttempts; attempt++ {
		lastErr = c.checkTopic(ctx)
		if lastErr == nil {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:           c.cfg.Brokers,
				Topic:             c.topic,
				GroupID:           c.groupID,
				MinBytes:          c.cfg.ConsumerMinBytes,
				MaxBytes:          c.cfg.ConsumerMaxBytes,
				MaxWait:           c.cfg.ConsumerMaxWait,
				CommitInterval:    c.cfg.ConsumerCommitInterval,
				HeartbeatInterval: c.cfg.ConsumerHeartbeatInterval,
				SessionTimeout:    c.cfg.ConsumerSessionTimeout,
				RebalanceTimeout:  c.cfg.ConsumerRebalanceTimeout,
				StartOffset:       c.cfg.ConsumerStartOffset,
				Logger:            kafka.LoggerFunc(func(msg string, args ...any) {}),
				ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
					c.log.Error(fmt.Sprintf("kafka reader: "+msg, args...))
				}),
			})
			c.mu.Lock()
			c.reader = reader
			c.mu.Unlock()
			return c.sm.To(Running)
		}

		c.log.Warn("Topic not subscribable yet",
			"topic", c.topic,
			"attempt", attempt,
			"max_attempts", c.subscribeMaxAttempts,
			"error", lastErr,
		)

		timer := time.NewTimer(c.subscribeInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = c.sm.To(Disconnected)
			return ctx.Err()
		case <-timer.C:
		}
	}

	_ = c.sm.To(Disconnected)
	return fmt.Errorf("%w for topic %s: %v", ErrSubscribeExhausted, c.topic, lastErr)
}

func (c *Consumer) checkTopic(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", c.cfg.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(c.topic)
	if err != nil {
		return err
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", c.topic)
	}
	return nil
}

// run is the fetch loop. A handler error means the outcome could not
// be recorded, so the offset stays uncommitted and the consumer drops
// the connection to get the message redelivered. A nil return asks
// Start to reconnect.
func (c *Consumer) run(ctx context.Context) error {
	c.mu.RLock()
	reader := c.reader
	c.mu.RUnlock()

	defer func() {
		c.mu.Lock()
		if c.reader != nil {
			_ = c.reader.Close()
			c.reader = nil
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		kafkaMsg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.log.Error("Error fetching message", "topic", c.topic, "error", err)
			_ = c.sm.To(Disconnected)
			return nil
		}

		msg := c.convertMessage(kafkaMsg)

		if handleErr := c.handler(ctx, msg); handleErr != nil {
			c.log.Error("Message handler failed, leaving offset uncommitted",
				"topic", c.topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"request_id", msg.GetRequestID(),
				"error", handleErr,
			)
			_ = c.sm.To(Disconnected)
			return nil
		}

		if err := reader.CommitMessages(ctx, kafkaMsg); err != nil {
			c.log.Error("Error committing offset", "topic", c.topic, "error", err)
		}
	}
}

func (c *Consumer) convertMessage(kafkaMsg kafka.Message) Message {
	msg := Message{
		Key:       string(kafkaMsg.Key),
		Value:     kafkaMsg.Value,
		Headers:   make(map[string]string),
		Topic:     kafkaMsg.Topic,
		Partition: kafkaMsg.Partition,
		Offset:    kafkaMsg.Offset,
		Timestamp: kafkaMsg.Time,
	}
	for _, header := range kafkaMsg.Headers {
		msg.Headers[header.Key] = string(header.Value)
	}
	return msg
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
