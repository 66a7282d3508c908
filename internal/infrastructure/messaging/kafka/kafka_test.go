package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

type mockKafkaWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed int
}

func (m *mockKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func newTestProducer(w WriterInterface) *Producer {
	return &Producer{
		writer:  w,
		config:  ProducerConfig{Brokers: []string{"localhost:9092"}, MaxMessageBytes: 64},
		logger:  logging.NewNopLogger(),
		metrics: &ProducerMetrics{},
	}
}

// mockKafkaReader serves queued messages then blocks until cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error { return nil }

func (m *mockKafkaReader) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.True(t, errors.IsCode(ValidateProducerConfig(ProducerConfig{}), errors.ErrCodeValidation))
	err := ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b:9092"},
		Security: SecurityConfig{SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"},
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestValidateConsumerConfig(t *testing.T) {
	ok := ConsumerConfig{Brokers: []string{"b:9092"}, GroupID: "g", Topics: []string{"t"}}
	assert.NoError(t, ValidateConsumerConfig(ok))

	noTopics := ok
	noTopics.Topics = nil
	assert.Error(t, ValidateConsumerConfig(noTopics))

	badReset := ok
	badReset.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(badReset))

	noCreds := ok
	noCreds.Security.SASLMechanism = "PLAIN"
	assert.Error(t, ValidateConsumerConfig(noCreds))
}

func TestSecurityConfig(t *testing.T) {
	mech, err := SecurityConfig{}.mechanism()
	require.NoError(t, err)
	assert.Nil(t, mech)

	mech, err = SecurityConfig{SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"}.mechanism()
	require.NoError(t, err)
	assert.Equal(t, "SCRAM-SHA-512", mech.Name())

	tlsCfg, err := SecurityConfig{TLSEnabled: true}.tlsConfig()
	require.NoError(t, err)
	assert.NotNil(t, tlsCfg)
	assert.False(t, tlsCfg.InsecureSkipVerify)

	_, err = SecurityConfig{TLSEnabled: true, TLSCertPath: "/nonexistent/ca.pem"}.tlsConfig()
	assert.Error(t, err)
}

func TestNewProducer(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, p.config.MaxAttempts)
	assert.Equal(t, 1<<20, p.config.MaxMessageBytes)
	require.NoError(t, p.Close())
}

// ─────────────────────────────────────────────────────────────────────────────
// Producer
// ─────────────────────────────────────────────────────────────────────────────

func TestProducer_Publish(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Publish(context.Background(), &ProducerMessage{
		Topic: "ppi.training.events", Key: []byte("run-1"), Value: []byte("{}"),
		Headers: map[string]string{"event_type": "run.state_changed"},
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "run-1", string(w.msgs[0].Key))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.False(t, w.msgs[0].Time.IsZero())
	assert.Equal(t, int64(1), p.Sent())
}

func TestProducer_PublishRejects(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Value: []byte("x")}), errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t"}), errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: make([]byte, 65)}), errors.ErrCodeValidation))

	failing := newTestProducer(&mockKafkaWriter{err: stderrors.New("leader not available")})
	assert.True(t, errors.IsCode(failing.Publish(ctx, &ProducerMessage{Topic: "t", Value: []byte("x")}), errors.ErrCodeServiceUnavailable))
	assert.Equal(t, int64(1), failing.metrics.MessagesFailed.Load())
}

func TestProducer_CloseOnce(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")}), ErrProducerClosed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Consumer
// ─────────────────────────────────────────────────────────────────────────────

func newTestConsumer(r ReaderInterface, retry RetryConfig) *Consumer {
	return &Consumer{
		reader:   r,
		config:   ConsumerConfig{GroupID: "g", RetryConfig: retry},
		logger:   logging.NewNopLogger(),
		handlers: make(map[string]MessageHandler),
		metrics:  &ConsumerMetrics{},
	}
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	r := &mockKafkaReader{queue: []kafka.Message{
		{Topic: "requests", Value: []byte("a"), Headers: []kafka.Header{{Key: "h", Value: []byte("v")}}},
		{Topic: "unknown", Value: []byte("b")},
	}}
	c := newTestConsumer(r, RetryConfig{})

	got := make(chan *Message, 1)
	c.Subscribe("requests", func(_ context.Context, msg *Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	select {
	case msg := <-got:
		assert.Equal(t, "a", string(msg.Value))
		assert.Equal(t, "v", msg.Headers["h"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}
	assert.Eventually(t, func() bool { return r.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.Equal(t, int64(1), c.Processed())
}

func TestConsumer_RetryThenSucceed(t *testing.T) {
	c := newTestConsumer(nil, RetryConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})
	attempts := 0
	err := c.processMessage(context.Background(), &Message{}, func(context.Context, *Message) error {
		attempts++
		if attempts < 2 {
			return stderrors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
}

func TestConsumer_DeadLetter(t *testing.T) {
	dl := &recordingPublisher{}
	c := newTestConsumer(nil, RetryConfig{MaxRetries: 1, RetryBackoff: time.Millisecond, DeadLetterTopic: "dlq"})
	c.deadLetter = dl

	msg := &Message{Topic: "requests", Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{}}
	err := c.processMessage(context.Background(), msg, func(context.Context, *Message) error {
		return stderrors.New("permanent")
	})
	require.NoError(t, err)
	require.Len(t, dl.msgs, 1)
	assert.Equal(t, "dlq", dl.msgs[0].Topic)
	assert.Equal(t, "requests", dl.msgs[0].Headers["original_topic"])
	assert.Equal(t, "permanent", dl.msgs[0].Headers["error_message"])
	assert.Empty(t, msg.Headers)
	assert.Equal(t, int64(1), c.metrics.MessagesDeadLettered.Load())
}

func TestConsumer_CancelledDuringRetry(t *testing.T) {
	c := newTestConsumer(nil, RetryConfig{MaxRetries: 3, RetryBackoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.processMessage(ctx, &Message{}, func(context.Context, *Message) error { return stderrors.New("x") })
	assert.ErrorIs(t, err, context.Canceled)
}

// ─────────────────────────────────────────────────────────────────────────────
// Topics
// ─────────────────────────────────────────────────────────────────────────────

type mockKafkaConn struct {
	created    []kafka.TopicConfig
	createErr  error
	partitions []kafka.Partition
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	m.created = append(m.created, topics...)
	return m.createErr
}

func (m *mockKafkaConn) ReadPartitions(...string) ([]kafka.Partition, error) {
	return m.partitions, nil
}

func (m *mockKafkaConn) Close() error { return nil }

func TestTopics_Configs(t *testing.T) {
	cfgs := Topics{Events: "e", Requests: "r", DeadLetter: "d"}.Configs(0)
	require.Len(t, cfgs, 3)
	assert.Equal(t, 1, cfgs[0].ReplicationFactor)
	assert.Len(t, Topics{Events: "e"}.Configs(3), 1)
}

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{}
	m := &TopicManager{conn: conn, logger: logging.NewNopLogger()}
	require.NoError(t, m.EnsureTopics(context.Background(), Topics{Events: "e", Requests: "r"}.Configs(1)))
	require.Len(t, conn.created, 2)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)

	conn.createErr = kafka.TopicAlreadyExists
	assert.NoError(t, m.EnsureTopics(context.Background(), Topics{Events: "e"}.Configs(1)))

	conn.createErr = stderrors.New("not controller")
	assert.Error(t, m.EnsureTopics(context.Background(), Topics{Events: "e"}.Configs(1)))
	conn.partitions = []kafka.Partition{{Topic: "e"}}
	assert.NoError(t, m.EnsureTopics(context.Background(), Topics{Events: "e"}.Configs(1)))

	assert.Error(t, m.EnsureTopics(context.Background(), []TopicConfig{{Name: "x"}}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

func TestEventPublisher(t *testing.T) {
	rec := &recordingPublisher{}
	pub := NewEventPublisher(rec, "ppi.training.events", "ppi-worker")

	ev := training.Event{Type: training.EventEpoch, RunID: "run-7", State: training.StateTraining, Epoch: 2, Improved: true}
	require.NoError(t, pub.Publish(context.Background(), ev))
	require.Len(t, rec.msgs, 1)
	msg := rec.msgs[0]
	assert.Equal(t, "run-7", string(msg.Key))
	assert.Equal(t, "run.epoch_completed", msg.Headers["event_type"])

	env, err := MessageToEventEnvelope(&Message{Value: msg.Value})
	require.NoError(t, err)
	assert.Equal(t, "ppi-worker", env.Source)
	var got training.Event
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, 2, got.Epoch)
	assert.True(t, got.Improved)
}

func TestRequestRoundTrip(t *testing.T) {
	rec := &recordingPublisher{}
	require.NoError(t, PublishRequest(context.Background(), rec, "ppi.training.requests", "ppi",
		training.Request{Params: &training.Params{Epochs: 4}}))
	require.Len(t, rec.msgs, 1)
	assert.NotEmpty(t, rec.msgs[0].Key)

	var got training.Request
	h := RequestHandler(func(_ context.Context, req training.Request) error {
		got = req
		return nil
	}, nil)
	require.NoError(t, h(context.Background(), &Message{Value: rec.msgs[0].Value}))
	assert.Equal(t, string(rec.msgs[0].Key), got.RequestID)
	require.NotNil(t, got.Params)
	assert.Equal(t, 4, got.Params.Epochs)
}

func TestRequestHandler_SkipsMalformed(t *testing.T) {
	called := false
	h := RequestHandler(func(context.Context, training.Request) error {
		called = true
		return nil
	}, nil)
	assert.NoError(t, h(context.Background(), &Message{Value: []byte("not json")}))

	env, err := NewEventEnvelope("run.state_changed", "x", map[string]string{})
	require.NoError(t, err)
	msg, err := env.ToMessage("t", "k")
	require.NoError(t, err)
	assert.NoError(t, h(context.Background(), &Message{Value: msg.Value}))
	assert.False(t, called)
}

func TestRequestHandler_PropagatesRunError(t *testing.T) {
	rec := &recordingPublisher{}
	require.NoError(t, PublishRequest(context.Background(), rec, "t", "ppi", training.Request{RequestID: "r1"}))
	h := RequestHandler(func(context.Context, training.Request) error { return stderrors.New("busy") }, nil)
	assert.Error(t, h(context.Background(), &Message{Value: rec.msgs[0].Value}))
}

//Personal.AI order the ending
