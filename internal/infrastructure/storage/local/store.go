// Package local is the filesystem ArtifactStore used for single-host runs.
package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// Store keeps artifacts under a root directory.  Keys are slash-separated
// relative paths; absolute keys are used as-is.
type Store struct {
	root   string
	logger logging.Logger
}

// NewStore creates the root directory if needed.
func NewStore(root string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create artifact root")
	}
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" {
		return "", errors.InvalidParam("artifact key is empty")
	}
	if filepath.IsAbs(key) {
		return key, nil
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.InvalidParam("artifact key escapes root").WithDetail("key=" + key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes data atomically: a temp file in the target directory is renamed
// over the destination so readers never observe a partial artifact.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create artifact directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-"+filepath.Base(p)+"-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write artifact")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to sync artifact")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to close artifact")
	}
	if err := os.Rename(tmpName, p); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to publish artifact")
	}
	s.logger.Debug("artifact written", logging.String("path", p), logging.Int("bytes", len(data)))
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("artifact not found").WithDetail("key=" + key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read artifact")
	}
	return data, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat artifact")
	}
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to delete artifact")
	}
	return nil
}

var _ storage.ArtifactStore = (*Store)(nil)

//Personal.AI order the ending
