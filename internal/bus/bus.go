// Package bus implements the event bus boundary of spec.md §6.1:
// one JetStream stream per topic, JSON payloads, bounded approximate-
// trim retention, and explicit-ack durable consumer groups for
// at-least-once delivery.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/anprsight/vision-core/internal/logging"
)

// Topic names a bus subject, one per spec.md §6.1.
type Topic string

const (
	TopicDetections  Topic = "detections"
	TopicTracking    Topic = "tracking"
	TopicPTZCommands Topic = "ptz.commands"
	TopicPTZStatus   Topic = "ptz.status"
	TopicANPRRequest Topic = "anpr.requests"
	TopicANPRResult  Topic = "anpr.results"
	TopicSystem      Topic = "system"
)

var allTopics = []Topic{
	TopicDetections, TopicTracking, TopicPTZCommands, TopicPTZStatus,
	TopicANPRRequest, TopicANPRResult, TopicSystem,
}

// maxStreamMessages is the approximate-trim retention bound of spec.md
// §6 ("bounded retention, max length ≈10,000").
const maxStreamMessages = 10000

// Config configures the NATS connection.
type Config struct {
	URL            string
	ConsumerGroup  string
	ConnectTimeout time.Duration
}

// Envelope wraps every payload with the fields spec.md §6.1 requires on
// all bus messages: a unique event id and an RFC3339 timestamp.
type Envelope struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Topic     Topic           `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
}

// Bus is a JetStream-backed publisher/subscriber over the seven fixed
// topics.
type Bus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger logging.Logger
	cfg    Config
}

// Connect dials url, ensures every topic's stream exists, and returns a
// ready Bus.
func Connect(cfg Config, logger logging.Logger) (*Bus, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	nc, err := nats.Connect(cfg.URL, nats.Timeout(timeout))
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to nats at %s", cfg.URL)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "acquiring jetstream context")
	}

	b := &Bus{nc: nc, js: js, logger: logger, cfg: cfg}
	for _, topic := range allTopics {
		if err := b.ensureStream(topic); err != nil {
			nc.Close()
			return nil, err
		}
	}
	return b, nil
}

func (b *Bus) ensureStream(topic Topic) error {
	name := streamName(topic)
	_, err := b.js.StreamInfo(name)
	if err == nil {
		return nil
	}
	_, err = b.js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{string(topic)},
		MaxMsgs:  maxStreamMessages,
		Discard:  nats.DiscardOld,
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return errors.Wrapf(err, "creating stream for topic %s", topic)
	}
	return nil
}

func streamName(topic Topic) string {
	return "ANPRSIGHT_" + string(topic)
}

// Publish marshals payload to JSON, wraps it in an Envelope, and
// publishes it to topic.
func (b *Bus) Publish(topic Topic, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshaling bus payload")
	}
	env := Envelope{
		EventID:   uuid.NewString(),
		Timestamp: time.Now(),
		Topic:     topic,
		Payload:   raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshaling bus envelope")
	}
	if _, err := b.js.Publish(string(topic), data); err != nil {
		return errors.Wrapf(err, "publishing to topic %s", topic)
	}
	return nil
}

// Handler processes one decoded envelope. A non-nil error is logged
// but the message is still acknowledged — spec.md §7's poison-pill
// resistance: a malformed or unprocessable payload must not block the
// subject.
type Handler func(ctx context.Context, env Envelope) error

// Subscribe creates (or reuses) a durable, explicit-ack consumer named
// by the bus's ConsumerGroup and dispatches each message to handler.
func (b *Bus) Subscribe(ctx context.Context, topic Topic, handler Handler) (*nats.Subscription, error) {
	durable := b.cfg.ConsumerGroup
	if durable == "" {
		durable = "anprsight"
	}

	sub, err := b.js.Subscribe(string(topic), func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.logger.Errorw("dropping malformed bus message", "topic", topic, "err", err)
			msg.Ack()
			return
		}
		if err := handler(ctx, env); err != nil {
			b.logger.Errorw("bus handler failed", "topic", topic, "event_id", env.EventID, "err", err)
		}
		msg.Ack()
	}, nats.Durable(durable), nats.ManualAck(), nats.DeliverAll())
	if err != nil {
		return nil, errors.Wrapf(err, "subscribing to topic %s", topic)
	}
	return sub, nil
}

// Close closes the underlying NATS connection without draining it first.
func (b *Bus) Close() {
	b.nc.Close()
}
