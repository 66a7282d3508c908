package milvus

import (
	"context"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const (
	// FieldAccession is the VarChar primary key.
	FieldAccession = "accession"
	// FieldEmbedding is the FloatVector column.
	FieldEmbedding = "embedding"

	maxAccessionLength = 128
)

var ErrCollectionDimMismatch = errors.New(errors.ErrCodeEmbeddingDimMismatch, "milvus collection dimension mismatch")

// CollectionConfig describes the embedding collection.
type CollectionConfig struct {
	Name             string
	Dim              int
	ShardsNum        int32
	ConsistencyLevel entity.ConsistencyLevel
	MetricType       entity.MetricType
}

// CollectionManager creates, loads and resets the embedding collection.
type CollectionManager struct {
	client *Client
	config CollectionConfig
	logger logging.Logger
}

// NewCollectionManager fills defaults for shards, consistency and metric.
func NewCollectionManager(client *Client, cfg CollectionConfig, logger logging.Logger) *CollectionManager {
	if cfg.ShardsNum == 0 {
		cfg.ShardsNum = 1
	}
	if cfg.ConsistencyLevel == 0 {
		cfg.ConsistencyLevel = entity.ClStrong
	}
	if cfg.MetricType == "" {
		cfg.MetricType = entity.COSINE
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CollectionManager{client: client, config: cfg, logger: logger}
}

// Schema returns the accession/embedding schema for dim.
func (m *CollectionManager) Schema() *entity.Schema {
	return entity.NewSchema().
		WithName(m.config.Name).
		WithDescription("protein sequence embeddings").
		WithField(entity.NewField().
			WithName(FieldAccession).
			WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).
			WithMaxLength(maxAccessionLength)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(m.config.Dim)))
}

// Ensure creates the collection and its index when absent, checks the
// vector dimension of an existing one, and loads it for querying.
func (m *CollectionManager) Ensure(ctx context.Context) error {
	mc := m.client.sdk()
	if mc == nil {
		return ErrConnectionFailed
	}
	has, err := mc.HasCollection(ctx, m.config.Name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to check collection existence")
	}
	if has {
		if err := m.checkDim(ctx); err != nil {
			return err
		}
	} else if err := m.create(ctx); err != nil {
		return err
	}
	if err := mc.LoadCollection(ctx, m.config.Name, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load collection")
	}
	return nil
}

func (m *CollectionManager) create(ctx context.Context) error {
	mc := m.client.sdk()
	if err := mc.CreateCollection(ctx, m.Schema(), m.config.ShardsNum,
		client.WithConsistencyLevel(m.config.ConsistencyLevel)); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create collection")
	}
	idx, err := entity.NewIndexFlat(m.config.MetricType)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to build index spec")
	}
	if err := mc.CreateIndex(ctx, m.config.Name, FieldEmbedding, idx, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create index")
	}
	m.logger.Info("Collection created",
		logging.String("name", m.config.Name),
		logging.Int("dim", m.config.Dim))
	return nil
}

func (m *CollectionManager) checkDim(ctx context.Context) error {
	coll, err := m.client.sdk().DescribeCollection(ctx, m.config.Name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to describe collection")
	}
	if coll.Schema == nil {
		return nil
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != FieldEmbedding {
			continue
		}
		raw, ok := f.TypeParams[entity.TypeParamDim]
		if !ok {
			return nil
		}
		dim, err := strconv.Atoi(raw)
		if err == nil && dim != m.config.Dim {
			return ErrCollectionDimMismatch.WithDetail(
				"collection " + m.config.Name + " has dim " + raw + ", expected " + strconv.Itoa(m.config.Dim))
		}
	}
	return nil
}

// Drop removes the collection if it exists.
func (m *CollectionManager) Drop(ctx context.Context) error {
	mc := m.client.sdk()
	has, err := mc.HasCollection(ctx, m.config.Name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to check collection existence")
	}
	if !has {
		return nil
	}
	if err := mc.DropCollection(ctx, m.config.Name); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to drop collection")
	}
	m.logger.Warn("Collection dropped", logging.String("name", m.config.Name))
	return nil
}

// RowCount reads the row_count statistic.
func (m *CollectionManager) RowCount(ctx context.Context) (int, error) {
	stats, err := m.client.sdk().GetCollectionStatistics(ctx, m.config.Name)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read collection statistics")
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, nil
	}
	return n, nil
}

//Personal.AI order the ending
