package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const contentType = "application/octet-stream"

// ArtifactStore keeps checkpoints, cache snapshots and encoder weights in
// the configured bucket under an optional key prefix.
type ArtifactStore struct {
	client *MinIOClient
	logger logging.Logger

	// readObject fetches a whole object; *minio.Object cannot be faked, so
	// tests substitute this instead of GetObject.
	readObject func(ctx context.Context, bucket, key string) ([]byte, error)
}

// NewArtifactStore returns a storage.ArtifactStore backed by MinIO.
func NewArtifactStore(client *MinIOClient, log logging.Logger) *ArtifactStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &ArtifactStore{client: client, logger: log}
	s.readObject = s.readFromMinio
	return s
}

func (s *ArtifactStore) objectKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", errors.InvalidParam("artifact key is empty")
	}
	if p := s.client.config.Prefix; p != "" {
		return path.Join(p, key), nil
	}
	return key, nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func (s *ArtifactStore) Put(ctx context.Context, key string, data []byte) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.GetClient().PutObject(ctx, s.client.Bucket(), k, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "upload failed").WithDetail("key=" + k)
	}
	s.logger.Debug("artifact uploaded", logging.String("key", k), logging.Int("bytes", len(data)))
	return nil
}

func (s *ArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	data, err := s.readObject(ctx, s.client.Bucket(), k)
	if err != nil {
		if isNoSuchKey(err) || errors.IsNotFound(err) {
			return nil, errors.NotFound("artifact not found").WithDetail("key=" + k)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "download failed").WithDetail("key=" + k)
	}
	return data, nil
}

func (s *ArtifactStore) readFromMinio(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetClient().GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *ArtifactStore) Exists(ctx context.Context, key string) (bool, error) {
	k, err := s.objectKey(key)
	if err != nil {
		return false, err
	}
	if _, err := s.client.GetClient().StatObject(ctx, s.client.Bucket(), k, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "stat failed")
	}
	return true, nil
}

func (s *ArtifactStore) Delete(ctx context.Context, key string) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if err := s.client.GetClient().RemoveObject(ctx, s.client.Bucket(), k, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "delete failed")
	}
	return nil
}

var _ storage.ArtifactStore = (*ArtifactStore)(nil)

//Personal.AI order the ending
