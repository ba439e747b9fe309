package mail

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	"github.com/emotionlab/go-enrollment"
	"github.com/emotionlab/go-enrollment/activitymap"
	goerrors "github.com/goliatone/go-errors"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaOptions are the broker connection settings shared by producers and
// the consumer.
type KafkaOptions struct {
	Brokers  []string
	Username string
	Password string
	TLS      bool
}

func (o KafkaOptions) transport() *kafka.Transport {
	t := &kafka.Transport{}
	if o.Username != "" {
		t.SASL = plain.Mechanism{Username: o.Username, Password: o.Password}
	}
	if o.TLS {
		t.TLS = &tls.Config{}
	}
	return t
}

func (o KafkaOptions) dialer() *kafka.Dialer {
	d := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if o.Username != "" {
		d.SASLMechanism = plain.Mechanism{Username: o.Username, Password: o.Password}
	}
	if o.TLS {
		d.TLS = &tls.Config{}
	}
	return d
}

func (o KafkaOptions) writer(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(o.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Transport:    o.transport(),
		WriteTimeout: 10 * time.Second,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// QueueSender publishes mail to a topic; the mailer binary delivers it.
type QueueSender struct {
	writer messageWriter
	now    func() time.Time
}

func NewQueueSender(opts KafkaOptions, topic string) *QueueSender {
	return newQueueSender(opts.writer(topic))
}

func newQueueSender(w messageWriter) *QueueSender {
	return &QueueSender{writer: w, now: time.Now}
}

func (q *QueueSender) Send(ctx context.Context, to, subject, body string) error {
	value, err := json.Marshal(Message{To: to, Subject: subject, Body: body})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode mail")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(to),
		Value: value,
		Time:  q.now(),
	}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to queue mail")
	}
	return nil
}

func (q *QueueSender) Close() error {
	return q.writer.Close()
}

// ActivitySink publishes normalized activity records to a topic keyed by account.
type ActivitySink struct {
	writer messageWriter
}

var _ enrollment.ActivitySink = (*ActivitySink)(nil)

func NewActivitySink(opts KafkaOptions, topic string) *ActivitySink {
	return &ActivitySink{writer: opts.writer(topic)}
}

func (s *ActivitySink) Record(ctx context.Context, event enrollment.ActivityEvent) error {
	record := activitymap.Normalize(event)
	value, err := json.Marshal(record)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode activity event")
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ObjectID),
		Value: value,
		Time:  record.OccurredAt,
	})
}

func (s *ActivitySink) Close() error {
	return s.writer.Close()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer drains the mail topic into a Sender.
type Consumer struct {
	reader messageReader
	sender Sender
	logger enrollment.Logger
}

func NewConsumer(opts KafkaOptions, topic, groupID string, sender Sender, logger enrollment.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  opts.Brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		Dialer:   opts.dialer(),
	})
	return newConsumer(reader, sender, logger)
}

func newConsumer(r messageReader, sender Sender, logger enrollment.Logger) *Consumer {
	if logger == nil {
		logger = LogSender{}.logger()
	}
	return &Consumer{reader: r, sender: sender, logger: logger}
}

// Run consumes until ctx is cancelled. Undecodable messages are committed and
// dropped; delivery failures are logged and committed so one bad address
// cannot block the partition.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("mail consumer read error", "error", err)
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("mail consumer commit error", "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var m Message
	if err := json.Unmarshal(msg.Value, &m); err != nil || m.To == "" {
		c.logger.Warn("dropping malformed mail message", "offset", msg.Offset, "error", err)
		return
	}

	if err := c.sender.Send(ctx, m.To, m.Subject, m.Body); err != nil {
		c.logger.Error("mail delivery failed", "to", m.To, "error", err)
		return
	}

	c.logger.Info("mail delivered", "to", m.To, "offset", msg.Offset)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
