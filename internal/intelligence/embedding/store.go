package embedding

import "context"

// Store is a durable id → vector backend.  Put must be idempotent: writing
// an existing id keeps the first value.
type Store interface {
	Name() string
	Get(ctx context.Context, id string) (Vector, bool, error)
	GetMany(ctx context.Context, ids []string) (map[string]Vector, error)
	Put(ctx context.Context, id string, v Vector) error
	Len(ctx context.Context) (int, error)
}

// Persister is implemented by stores that hold state in memory and flush it
// explicitly.
type Persister interface {
	Persist(ctx context.Context) error
	Load(ctx context.Context) error
}

// Resetter is implemented by stores that can drop their whole generation.
type Resetter interface {
	Reset(ctx context.Context) error
}

//Personal.AI order the ending
