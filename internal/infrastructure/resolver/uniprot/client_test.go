package uniprot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const fasta = ">sp|P69905|HBA_HUMAN Hemoglobin subunit alpha\nMVLSPADKTN\nVKAAWGKVGA\n"

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url, MaxRetries: 3, InitialWait: time.Millisecond, MaxElapsed: time.Second}, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uniprotkb/P69905.fasta", r.URL.Path)
		_, _ = w.Write([]byte(fasta))
	}))
	defer srv.Close()

	m := common.NewInMemoryPPIMetrics()
	c := newTestClient(t, srv.URL+"/uniprotkb/", WithMetrics(m))
	seq, err := c.Resolve(context.Background(), "p69905")
	require.NoError(t, err)
	assert.Equal(t, "MVLSPADKTNVKAAWGKVGA", seq)
	assert.Zero(t, m.GetCurrentStats().ResolutionErrors)
}

func TestClient_NotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Resolve(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSequenceNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(fasta))
		}
	}))
	defer srv.Close()

	seq, err := newTestClient(t, srv.URL).Resolve(context.Background(), "P69905")
	require.NoError(t, err)
	assert.NotEmpty(t, seq)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_PersistentFailureIsResolutionError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := common.NewInMemoryPPIMetrics()
	_, err := newTestClient(t, srv.URL, WithMetrics(m)).Resolve(context.Background(), "P1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeResolution))
	assert.Equal(t, int64(1), m.GetCurrentStats().ResolutionErrors)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestClient_EmptyBodyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Resolve(context.Background(), "P1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeSequenceNotFound))
}

func TestClient_Validation(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example"})
	assert.Error(t, err)

	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	_, err = c.Resolve(context.Background(), " ")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(t, srv.URL).Resolve(ctx, "P1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

//Personal.AI order the ending
