package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

func TestTokenize(t *testing.T) {
	toks, err := Tokenize("ACy", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 20}, toks)
	assert.Equal(t, "ACY", Detokenize(append(toks, PadToken)))

	toks, err = Tokenize("MKVLAAGG", 3)
	require.NoError(t, err)
	assert.Len(t, toks, 3)
}

func TestTokenize_Rejects(t *testing.T) {
	for _, seq := range []string{"", "MK V", "MK1", "MKJ", "MK*", strings.Repeat("A", 10) + "#"} {
		_, err := Tokenize(seq, 4)
		require.Error(t, err, "seq %q", seq)
		assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingCompute))
	}
}

func TestTokenize_AcceptsAmbiguityCodes(t *testing.T) {
	_, err := Tokenize("XBUZO", 0)
	assert.NoError(t, err)
	assert.Equal(t, 26, VocabSize)
}

func TestResidueEncoder_PadPositionsAreZero(t *testing.T) {
	enc, err := NewResidueEncoder(SeededWeights(8, 2, 1))
	require.NoError(t, err)
	out, err := enc.Encode(context.Background(), [][]int{{1, 2, 3, 0, 0}})
	require.NoError(t, err)
	require.Len(t, out[0], 5)
	assert.Equal(t, make([]float32, 8), out[0][3])
	assert.NotEqual(t, make([]float32, 8), out[0][0])
}

func TestResidueEncoder_PaddingDoesNotLeak(t *testing.T) {
	enc, _ := NewResidueEncoder(SeededWeights(8, 2, 1))
	a, err := enc.Encode(context.Background(), [][]int{{1, 2, 3}})
	require.NoError(t, err)
	b, err := enc.Encode(context.Background(), [][]int{{1, 2, 3, 0, 0, 0}})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, a[0][i], b[0][i])
	}
}

func TestResidueEncoder_RejectsBadToken(t *testing.T) {
	enc, _ := NewResidueEncoder(SeededWeights(4, 1, 1))
	_, err := enc.Encode(context.Background(), [][]int{{1, 99}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingCompute))
}

func TestSeededWeights_Deterministic(t *testing.T) {
	assert.Equal(t, SeededWeights(16, 2, 7), SeededWeights(16, 2, 7))
	assert.NotEqual(t, SeededWeights(16, 2, 7).Table, SeededWeights(16, 2, 8).Table)
	assert.NoError(t, SeededWeights(16, 0, 7).Validate())
}

func TestWeightsCodec(t *testing.T) {
	w := SeededWeights(6, 1, 3)
	data, err := EncodeWeights(w)
	require.NoError(t, err)
	got, err := DecodeWeights(data)
	require.NoError(t, err)
	assert.Equal(t, w, got)

	_, err = DecodeWeights(data[:len(data)-3])
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelLoad))

	_, err = DecodeWeights([]byte{0x0a, 0x03, 'b', 'a', 'd'})
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelLoad))

	_, err = EncodeWeights(&EncoderWeights{Dim: 2, Vocab: VocabSize})
	assert.Error(t, err)
}

func TestWeightsLoader_FallsBackToSeeded(t *testing.T) {
	dir := t.TempDir()
	m := common.NewInMemoryPPIMetrics()
	chain, err := NewWeightsLoader(WeightsSourceConfig{
		Sources: []string{"file", "object", "http", "seeded"},
		Path:    filepath.Join(dir, "absent.pb"),
		Dim:     8, Window: 2, Seed: 5,
	}, nil, nil, m)
	require.NoError(t, err)

	w, source, err := chain.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "seeded", source)
	assert.Equal(t, SeededWeights(8, 2, 5), w)
	assert.Equal(t, 1, m.ModelLoads["seeded:ok"])
}

func TestWeightsLoader_PrefersFileAndChecksDim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.pb")
	data, err := EncodeWeights(SeededWeights(4, 1, 9))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	chain, err := NewWeightsLoader(WeightsSourceConfig{Sources: []string{"file", "seeded"}, Path: path, Dim: 4, Window: 1, Seed: 1}, nil, nil, nil)
	require.NoError(t, err)
	w, source, err := chain.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file", source)
	assert.Equal(t, SeededWeights(4, 1, 9), w)

	// Wrong width falls through to the seeded provider.
	chain, _ = NewWeightsLoader(WeightsSourceConfig{Sources: []string{"file", "seeded"}, Path: path, Dim: 8, Window: 1, Seed: 1}, nil, nil, nil)
	_, source, err = chain.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "seeded", source)
}

func TestWeightsLoader_HTTP(t *testing.T) {
	data, _ := EncodeWeights(SeededWeights(4, 1, 2))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(data) }))
	defer srv.Close()

	chain, err := NewWeightsLoader(WeightsSourceConfig{Sources: []string{"http"}, URL: srv.URL, Dim: 4}, nil, nil, nil)
	require.NoError(t, err)
	_, source, err := chain.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http", source)
}

func TestWeightsLoader_UnknownSource(t *testing.T) {
	_, err := NewWeightsLoader(WeightsSourceConfig{Sources: []string{"torchhub"}}, nil, nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestRemoteEncoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/represent", r.URL.Path)
		var req representRequest
		require.NoError(t, jsonDecode(r, &req))
		resp := representResponse{}
		for _, s := range req.Sequences {
			rows := make([][]float32, len(s))
			for i := range rows {
				rows[i] = []float32{float32(len(s)), 1}
			}
			resp.Representations = append(resp.Representations, rows)
		}
		jsonEncode(w, resp)
	}))
	defer srv.Close()

	enc, err := NewRemoteEncoder(RemoteConfig{BaseURL: srv.URL + "/", Dim: 2})
	require.NoError(t, err)
	out, err := enc.Encode(context.Background(), [][]int{{1, 2, 3}, {4, 0, 0}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []float32{3, 1}, out[0][2])
	assert.Equal(t, []float32{1, 1}, out[1][0])
	assert.Equal(t, []float32{0, 0}, out[1][2])
}

func TestRemoteEncoder_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad residue", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	enc, _ := NewRemoteEncoder(RemoteConfig{BaseURL: srv.URL, Dim: 2})
	_, err := enc.Encode(context.Background(), [][]int{{1}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingCompute))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteEncoder_Validation(t *testing.T) {
	_, err := NewRemoteEncoder(RemoteConfig{Dim: 2})
	assert.Error(t, err)
	_, err = NewRemoteEncoder(RemoteConfig{BaseURL: "http://x"})
	assert.Error(t, err)
}

//Personal.AI order the ending
