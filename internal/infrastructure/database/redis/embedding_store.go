package redis

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/PPI-Intelligence/internal/intelligence/embedding"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// EmbeddingStore keeps vectors in one hash, {prefix}:embeddings, field
// id → little-endian packed float32.
type EmbeddingStore struct {
	client *Client
	key    string
}

var _ embedding.Store = (*EmbeddingStore)(nil)

// NewEmbeddingStore binds the store to client.
func NewEmbeddingStore(client *Client) *EmbeddingStore {
	return &EmbeddingStore{client: client, key: client.Key("embeddings")}
}

func (s *EmbeddingStore) Name() string { return "redis" }

func (s *EmbeddingStore) Get(ctx context.Context, id string) (embedding.Vector, bool, error) {
	if s.client.isClosed() {
		return nil, false, ErrClientClosed
	}
	raw, err := s.client.rdb.HGet(ctx, s.key, id).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "redis hget embedding")
	}
	v, err := UnpackVector(raw)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *EmbeddingStore) GetMany(ctx context.Context, ids []string) (map[string]embedding.Vector, error) {
	out := make(map[string]embedding.Vector, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if s.client.isClosed() {
		return nil, ErrClientClosed
	}
	vals, err := s.client.rdb.HMGet(ctx, s.key, ids...).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "redis hmget embeddings")
	}
	for i, val := range vals {
		str, ok := val.(string)
		if !ok {
			continue
		}
		v, err := UnpackVector([]byte(str))
		if err != nil {
			return nil, err
		}
		out[ids[i]] = v
	}
	return out, nil
}

// Put writes with HSETNX so the first value for an id wins.
func (s *EmbeddingStore) Put(ctx context.Context, id string, v embedding.Vector) error {
	if s.client.isClosed() {
		return ErrClientClosed
	}
	if err := s.client.rdb.HSetNX(ctx, s.key, id, PackVector(v)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis hsetnx embedding")
	}
	return nil
}

func (s *EmbeddingStore) Len(ctx context.Context) (int, error) {
	if s.client.isClosed() {
		return 0, ErrClientClosed
	}
	n, err := s.client.rdb.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeCacheError, "redis hlen embeddings")
	}
	return int(n), nil
}

// Reset deletes the whole generation.
func (s *EmbeddingStore) Reset(ctx context.Context) error {
	if s.client.isClosed() {
		return ErrClientClosed
	}
	return s.client.rdb.Del(ctx, s.key).Err()
}

// PackVector encodes v as little-endian float32s.
func PackVector(v embedding.Vector) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

// UnpackVector decodes PackVector output.
func UnpackVector(b []byte) (embedding.Vector, error) {
	if len(b)%4 != 0 {
		return nil, errors.Newf(errors.ErrCodeSerialization, "packed vector length %d is not a multiple of 4", len(b))
	}
	v := make(embedding.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

//Personal.AI order the ending
