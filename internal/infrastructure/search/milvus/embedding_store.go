package milvus

import (
	"context"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/PPI-Intelligence/internal/intelligence/embedding"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// EmbeddingStore keeps vectors in a Milvus collection keyed by accession.
type EmbeddingStore struct {
	client *Client
	coll   *CollectionManager
}

// NewEmbeddingStore ensures the collection exists with the configured dim.
func NewEmbeddingStore(ctx context.Context, client *Client, coll *CollectionManager) (*EmbeddingStore, error) {
	if err := coll.Ensure(ctx); err != nil {
		return nil, err
	}
	return &EmbeddingStore{client: client, coll: coll}, nil
}

func (s *EmbeddingStore) Name() string { return "milvus" }

// Dim is the collection's vector dimension.
func (s *EmbeddingStore) Dim() int { return s.coll.config.Dim }

func (s *EmbeddingStore) Get(ctx context.Context, id string) (embedding.Vector, bool, error) {
	got, err := s.GetMany(ctx, []string{id})
	if err != nil {
		return nil, false, err
	}
	v, ok := got[id]
	return v, ok, nil
}

func (s *EmbeddingStore) GetMany(ctx context.Context, ids []string) (map[string]embedding.Vector, error) {
	out := make(map[string]embedding.Vector, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rs, err := s.client.sdk().QueryByPks(ctx, s.coll.config.Name, nil,
		entity.NewColumnVarChar(FieldAccession, ids), []string{FieldAccession, FieldEmbedding})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "milvus query embeddings")
	}
	accCol, ok := rs.GetColumn(FieldAccession).(*entity.ColumnVarChar)
	if !ok {
		return out, nil
	}
	vecCol, ok := rs.GetColumn(FieldEmbedding).(*entity.ColumnFloatVector)
	if !ok {
		return nil, errors.New(errors.ErrCodeSerialization, "milvus result missing embedding column")
	}
	accs, vecs := accCol.Data(), vecCol.Data()
	for i := range accs {
		if i < len(vecs) {
			out[accs[i]] = vecs[i]
		}
	}
	return out, nil
}

// Put upserts only when the id is absent so the first written value wins.
func (s *EmbeddingStore) Put(ctx context.Context, id string, v embedding.Vector) error {
	if _, ok, err := s.Get(ctx, id); err != nil {
		return err
	} else if ok {
		return nil
	}
	_, err := s.client.sdk().Upsert(ctx, s.coll.config.Name, "",
		entity.NewColumnVarChar(FieldAccession, []string{id}),
		entity.NewColumnFloatVector(FieldEmbedding, len(v), [][]float32{v}))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "milvus upsert embedding")
	}
	return nil
}

func (s *EmbeddingStore) Len(ctx context.Context) (int, error) {
	return s.coll.RowCount(ctx)
}

// Reset drops and recreates the collection.
func (s *EmbeddingStore) Reset(ctx context.Context) error {
	if err := s.coll.Drop(ctx); err != nil {
		return err
	}
	return s.coll.Ensure(ctx)
}

//Personal.AI order the ending
