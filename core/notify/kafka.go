// Package notify publishes committed table changes.
package notify

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/logger"
)

// Header keys of published messages
const (
	HeaderOperation = "operation"
	HeaderTable     = "table"
)

// DefaultTopic is the topic used when none is configured
const DefaultTopic = "table_notification"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka is a core.Notifier which publishes every change as a kafka message. The
// message key is the table name, so changes of one table stay in order.
type Kafka struct {
	writer messageWriter
}

var _ core.Notifier = (*Kafka)(nil)

// NewKafka returns a notifier writing asynchronously to topic on brokers
func NewKafka(brokers []string, topic string) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	nillog := logger.FromContext(nil)
	nillog.Infof("publishing table notifications to topic %s on %v", topic, brokers)
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				nillog.WithError(err).Errorf("Error 4901: cannot publish %d table notifications", len(messages))
			}
		},
	}}
}

// Message returns the kafka message for a change notification
func Message(table string, operation core.Operation, payload []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(table),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderOperation, Value: []byte(operation)},
			{Key: HeaderTable, Value: []byte(table)},
		},
		Time: time.Now().UTC(),
	}
}

// Notify implements core.Notifier. Failures are logged, they never fail the operation
// which has already been committed.
func (k *Kafka) Notify(ctx context.Context, table string, operation core.Operation, payload []byte) {
	if err := k.writer.WriteMessages(ctx, Message(table, operation, payload)); err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4902: cannot publish %s notification for %s", operation, table)
	}
}

// Close flushes pending messages and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}
