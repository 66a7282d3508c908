package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/PPI-Intelligence/pkg/errors"
)

func staticProvider(name string, v int, err error) Provider[int] {
	return ProviderFunc[int]{ProviderName: name, Fn: func(context.Context) (int, error) { return v, err }}
}

func TestLoaderChain_FirstSuccessWins(t *testing.T) {
	m := NewInMemoryPPIMetrics()
	chain := NewLoaderChain[int](nil, m,
		staticProvider("file", 0, ErrSourceUnavailable),
		staticProvider("object", 0, errors.New("corrupt")),
		staticProvider("http", 7, nil),
		staticProvider("seeded", 9, nil),
	)

	v, name, err := chain.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, "http", name)
	assert.Equal(t, 1, m.ModelLoads["object:error"])
	assert.Equal(t, 1, m.ModelLoads["http:ok"])
	assert.Zero(t, m.ModelLoads["file:error"])
}

func TestLoaderChain_AllFail(t *testing.T) {
	chain := NewLoaderChain[int](nil, nil,
		staticProvider("file", 0, ErrSourceUnavailable),
		staticProvider("object", 0, errors.New("truncated")),
	)
	_, _, err := chain.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeModelLoad))
	assert.Contains(t, err.Error(), "object: truncated")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoaderChain_Empty(t *testing.T) {
	_, _, err := NewLoaderChain[int](nil, nil).Load(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeModelLoad))
}

func TestLoaderChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewLoaderChain[int](nil, nil, staticProvider("file", 1, nil)).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecoded(t *testing.T) {
	raw := ProviderFunc[[]byte]{ProviderName: "file", Fn: func(context.Context) ([]byte, error) { return []byte("42"), nil }}
	p := Decoded[int](raw, func(b []byte) (int, error) { return strconv.Atoi(string(b)) })
	assert.Equal(t, "file", p.Name())
	v, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.bin")
	require.NoError(t, os.WriteFile(path, []byte("w"), 0o600))

	data, err := FileProvider(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "w", string(data))

	_, err = FileProvider(filepath.Join(dir, "nope")).Load(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	_, err = FileProvider("").Load(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

type mapGetter map[string][]byte

func (m mapGetter) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return nil, apperrors.NotFound("missing")
}

func TestObjectProvider(t *testing.T) {
	store := mapGetter{"encoder.bin": []byte("enc")}
	data, err := ObjectProvider(store, "encoder.bin").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "enc", string(data))

	_, err = ObjectProvider(store, "other").Load(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	_, err = ObjectProvider(nil, "x").Load(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	p := HTTPProvider(HTTPProviderConfig{URL: srv.URL, MaxRetries: 5, InitialWait: time.Millisecond})
	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_NotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := HTTPProvider(HTTPProviderConfig{URL: srv.URL, MaxRetries: 5, InitialWait: time.Millisecond}).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_NoURL(t *testing.T) {
	_, err := HTTPProvider(HTTPProviderConfig{}).Load(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

//Personal.AI order the ending
