package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const schemaVersion = "v1"

// EventEnvelope wraps every payload on the wire.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEventEnvelope(eventType, source string, payload any) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "envelope has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal payload")
	}
	return nil
}

// ToMessage encodes the envelope for topic, keyed by key.
func (e *EventEnvelope) ToMessage(topic, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Training run events
// ─────────────────────────────────────────────────────────────────────────────

// messagePublisher is satisfied by *Producer.
type messagePublisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// EventPublisher publishes training run events keyed by run id.
type EventPublisher struct {
	producer messagePublisher
	topic    string
	source   string
}

var _ training.Publisher = (*EventPublisher)(nil)

func NewEventPublisher(p messagePublisher, topic, source string) *EventPublisher {
	return &EventPublisher{producer: p, topic: topic, source: source}
}

func (p *EventPublisher) Publish(ctx context.Context, ev training.Event) error {
	env, err := NewEventEnvelope(string(ev.Type), p.source, ev)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(p.topic, ev.RunID)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

// RequestEventType tags run requests on the requests topic.
const RequestEventType = "run.requested"

// PublishRequest enqueues a run request for the worker pool.
func PublishRequest(ctx context.Context, p messagePublisher, topic, source string, req training.Request) error {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	env, err := NewEventEnvelope(RequestEventType, source, req)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic, req.RequestID)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}

// RequestHandler decodes run requests and passes them to run.  Malformed
// messages are logged and skipped rather than retried.
func RequestHandler(run func(ctx context.Context, req training.Request) error, logger logging.Logger) MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(ctx context.Context, msg *Message) error {
		env, err := MessageToEventEnvelope(msg)
		if err == nil && env.EventType != RequestEventType {
			err = errors.New(errors.ErrCodeValidation, "unexpected event type").WithDetail(env.EventType)
		}
		var req training.Request
		if err == nil {
			err = env.DecodePayload(&req)
		}
		if err != nil {
			logger.Warn("Dropping malformed run request",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err))
			return nil
		}
		return run(ctx, req)
	}
}

//Personal.AI order the ending
