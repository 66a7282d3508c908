// Package storage defines the artifact store port shared by the filesystem
// and MinIO backends.  Checkpoints, embedding cache snapshots and encoder
// weights all move through it as opaque byte blobs addressed by key.
package storage

import "context"

// ArtifactStore persists opaque blobs by key.  Get returns an error carrying
// errors.ErrCodeNotFound when the key is absent.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

//Personal.AI order the ending
