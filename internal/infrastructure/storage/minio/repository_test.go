package minio

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	apperrors "github.com/turtacn/PPI-Intelligence/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinIOAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return nil, args.Error(1)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockMinIOAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucketName, objectName, opts).Error(0)
}

type ArtifactStoreSuite struct {
	suite.Suite
	api   *MockMinIOAPI
	store *ArtifactStore
	ctx   context.Context
}

func (s *ArtifactStoreSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	client := NewMinIOClientWithAPI(s.api, &MinIOConfig{Bucket: "ppi", Prefix: "runs"}, nil)
	s.store = NewArtifactStore(client, nil)
	s.ctx = context.Background()
}

func (s *ArtifactStoreSuite) TestPut_PrefixesKey() {
	s.api.On("PutObject", s.ctx, "ppi", "runs/model/model.ppi", mock.Anything, int64(3), mock.Anything).
		Return(minio.UploadInfo{Key: "runs/model/model.ppi"}, nil)

	err := s.store.Put(s.ctx, "model/model.ppi", []byte("abc"))
	s.NoError(err)
	s.api.AssertExpectations(s.T())
}

func (s *ArtifactStoreSuite) TestPut_Failure() {
	s.api.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("disk full"))

	err := s.store.Put(s.ctx, "k", []byte("abc"))
	s.Error(err)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeStorageError))
}

func (s *ArtifactStoreSuite) TestGet_UsesReader() {
	s.store.readObject = func(_ context.Context, bucket, key string) ([]byte, error) {
		s.Equal("ppi", bucket)
		s.Equal("runs/cache.pb", key)
		return []byte("snapshot"), nil
	}
	data, err := s.store.Get(s.ctx, "/cache.pb")
	s.NoError(err)
	s.Equal("snapshot", string(data))
}

func (s *ArtifactStoreSuite) TestGet_NoSuchKeyIsNotFound() {
	s.store.readObject = func(context.Context, string, string) ([]byte, error) {
		return nil, minio.ErrorResponse{Code: "NoSuchKey"}
	}
	_, err := s.store.Get(s.ctx, "missing")
	s.True(apperrors.IsNotFound(err))
}

func (s *ArtifactStoreSuite) TestExists() {
	s.api.On("StatObject", s.ctx, "ppi", "runs/a", mock.Anything).Return(minio.ObjectInfo{Key: "runs/a"}, nil)
	s.api.On("StatObject", s.ctx, "ppi", "runs/b", mock.Anything).Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})
	s.api.On("StatObject", s.ctx, "ppi", "runs/c", mock.Anything).Return(minio.ObjectInfo{}, errors.New("timeout"))

	ok, err := s.store.Exists(s.ctx, "a")
	s.NoError(err)
	s.True(ok)

	ok, err = s.store.Exists(s.ctx, "b")
	s.NoError(err)
	s.False(ok)

	_, err = s.store.Exists(s.ctx, "c")
	s.Error(err)
}

func (s *ArtifactStoreSuite) TestDelete() {
	s.api.On("RemoveObject", s.ctx, "ppi", "runs/a", mock.Anything).Return(nil)
	s.NoError(s.store.Delete(s.ctx, "a"))
}

func (s *ArtifactStoreSuite) TestEmptyKey() {
	s.Error(s.store.Put(s.ctx, "", nil))
}

func TestArtifactStoreSuite(t *testing.T) {
	suite.Run(t, new(ArtifactStoreSuite))
}

func TestApplyDefaults(t *testing.T) {
	cfg := &MinIOConfig{}
	applyDefaults(cfg)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "ppi-artifacts", cfg.Bucket)
	assert.NotZero(t, cfg.ConnectTimeout)
}

func TestNewMinIOClient_CreatesMissingBucket(t *testing.T) {
	api := new(MockMinIOAPI)
	orig := newMinio
	newMinio = func(*MinIOConfig) (MinIOAPI, error) { return api, nil }
	defer func() { newMinio = orig }()

	api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{}, nil)
	api.On("BucketExists", mock.Anything, "ppi-artifacts").Return(false, nil)
	api.On("MakeBucket", mock.Anything, "ppi-artifacts", mock.Anything).Return(nil)

	c, err := NewMinIOClient(&MinIOConfig{Endpoint: "localhost:9000"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ppi-artifacts", c.Bucket())
	api.AssertExpectations(t)
}

func TestNewMinIOClient_Unreachable(t *testing.T) {
	api := new(MockMinIOAPI)
	orig := newMinio
	newMinio = func(*MinIOConfig) (MinIOAPI, error) { return api, nil }
	defer func() { newMinio = orig }()

	api.On("ListBuckets", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := NewMinIOClient(&MinIOConfig{Endpoint: "localhost:9000"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
}

func TestHealthCheck(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{}, nil)
	api.On("BucketExists", mock.Anything, "ppi").Return(true, nil)
	c := NewMinIOClientWithAPI(api, &MinIOConfig{Bucket: "ppi"}, nil)

	st, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Healthy)
	assert.True(t, st.BucketExists)
	assert.NoError(t, c.Close())
}

//Personal.AI order the ending
