package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Consumer polls a single topic under its own consumer group and hands
// each record to a Handler, dead-lettering any record the handler
// rejects instead of blocking the partition on it.
type Consumer struct {
	client  *kgo.Client
	logger  *logrus.Logger
	groupID string
	handler Handler
	dlq     *Producer
	dlqTopic string
}

// NewConsumer creates a Kafka consumer bound to groupID, consuming from
// the beginning of the topic with manual offset commits so a handler
// failure can be dead-lettered before the offset advances.
func NewConsumer(brokers []string, groupID, clientID string, logger *logrus.Logger, handler Handler) (*Consumer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ClientID(clientID),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Consumer{
		client:  client,
		logger:  logger,
		groupID: groupID,
		handler: handler,
	}, nil
}

// WithDLQ routes handler failures to topic via producer instead of only
// logging them.
func (c *Consumer) WithDLQ(producer *Producer, topic string) *Consumer {
	c.dlq = producer
	c.dlqTopic = topic
	return c
}

func (c *Consumer) Close() error {
	c.client.Close()
	return nil
}

// Subscribe adds topics to the consumer group's assignment.
func (c *Consumer) Subscribe(topics ...string) error {
	c.client.AddConsumeTopics(topics...)
	return nil
}

// Start polls until ctx is cancelled. Each fetched record is converted
// to a Message, handed to the handler, and the batch is committed once
// every record in it has been processed (successfully or dead-lettered).
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			fetches := c.client.PollFetches(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errs := fetches.Errors(); len(errs) > 0 {
				c.logger.WithField("group_id", c.groupID).Errorf("errors while polling: %v", errs)
				continue
			}

			iter := fetches.RecordIter()
			var records []*kgo.Record

			for !iter.Done() {
				record := iter.Next()
				records = append(records, record)

				msg := Message{
					Topic:     record.Topic,
					Partition: record.Partition,
					Offset:    record.Offset,
					Key:       record.Key,
					Value:     record.Value,
					Timestamp: record.Timestamp,
					Headers:   make(map[string]string, len(record.Headers)),
				}
				for _, h := range record.Headers {
					msg.Headers[h.Key] = string(h.Value)
				}

				if err := c.handler.HandleMessage(msg); err != nil {
					c.logger.WithError(err).WithField("topic", msg.Topic).Error("failed to handle message")
					c.deadLetter(ctx, msg, err)
				}
			}

			if len(records) > 0 {
				if err := c.client.CommitRecords(ctx, records...); err != nil {
					c.logger.WithError(err).Error("failed to commit records")
				}
			}
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg Message, handlingErr error) {
	if c.dlq == nil {
		return
	}
	payload, err := EncodeDLQMessage(msg, handlingErr, c.groupID)
	if err != nil {
		c.logger.WithError(err).Error("failed to encode dlq payload")
		return
	}
	if err := c.dlq.ProduceMessage(c.dlqTopic, msg.Key, payload, nil); err != nil {
		c.logger.WithError(err).Error("failed to publish to dead-letter topic")
	}
}

// HealthCheck pings the broker with a short timeout.
func (c *Consumer) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("kafka health check failed: %w", err)
	}
	return nil
}
