package kafka

import (
	"context"
	stderrors "errors"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// TopicConfig describes a topic to provision.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// Topics names the pipeline's topics.
type Topics struct {
	Events     string
	Requests   string
	DeadLetter string
}

// Configs returns provisioning settings for every named topic.  Events are
// keyed by run id, so a handful of partitions keeps per-run ordering while
// letting several runs proceed in parallel.
func (t Topics) Configs(replication int) []TopicConfig {
	if replication <= 0 {
		replication = 1
	}
	const day = int64(24 * 3600 * 1000)
	var out []TopicConfig
	if t.Events != "" {
		out = append(out, TopicConfig{Name: t.Events, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day})
	}
	if t.Requests != "" {
		out = append(out, TopicConfig{Name: t.Requests, NumPartitions: 3, ReplicationFactor: replication, RetentionMs: 7 * day})
	}
	if t.DeadLetter != "" {
		out = append(out, TopicConfig{Name: t.DeadLetter, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day})
	}
	return out
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager provisions topics through a broker connection.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to dial kafka")
	}
	return &TopicManager{conn: conn, logger: logger}, nil
}

// EnsureTopics creates missing topics.  Existing topics are left untouched.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, cfg := range topics {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cfg.Name == "" || cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
			return errors.New(errors.ErrCodeValidation, "invalid topic config").WithDetail(cfg.Name)
		}
		kc := kafka.TopicConfig{
			Topic:             cfg.Name,
			NumPartitions:     cfg.NumPartitions,
			ReplicationFactor: cfg.ReplicationFactor,
		}
		if cfg.RetentionMs > 0 {
			kc.ConfigEntries = append(kc.ConfigEntries, kafka.ConfigEntry{
				ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10),
			})
		}
		err := m.conn.CreateTopics(kc)
		switch {
		case err == nil:
			m.logger.Info("Topic created", logging.String("topic", cfg.Name))
		case stderrors.Is(err, kafka.TopicAlreadyExists):
		default:
			if exists, _ := m.TopicExists(cfg.Name); !exists {
				return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "create topic").WithDetail(cfg.Name)
			}
		}
	}
	return nil
}

func (m *TopicManager) TopicExists(name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, err
	}
	return len(partitions) > 0, nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

//Personal.AI order the ending
