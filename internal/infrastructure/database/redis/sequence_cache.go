package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// SequenceCache shares resolved sequences between processes under
// {prefix}:seq:{accession}.  Entries expire after ttl (0 keeps them).
type SequenceCache struct {
	client *Client
	ttl    time.Duration
}

// NewSequenceCache binds the cache to client.
func NewSequenceCache(client *Client, ttl time.Duration) *SequenceCache {
	return &SequenceCache{client: client, ttl: ttl}
}

func (c *SequenceCache) key(id string) string { return c.client.Key("seq:" + id) }

// GetSequence returns the cached sequence, or ok=false on a miss.
func (c *SequenceCache) GetSequence(ctx context.Context, id string) (string, bool, error) {
	if c.client.isClosed() {
		return "", false, ErrClientClosed
	}
	seq, err := c.client.rdb.Get(ctx, c.key(id)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeCacheError, "redis get sequence")
	}
	return seq, true, nil
}

// PutSequence stores seq.
func (c *SequenceCache) PutSequence(ctx context.Context, id, seq string) error {
	if c.client.isClosed() {
		return ErrClientClosed
	}
	if err := c.client.rdb.Set(ctx, c.key(id), seq, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis set sequence")
	}
	return nil
}

//Personal.AI order the ending
