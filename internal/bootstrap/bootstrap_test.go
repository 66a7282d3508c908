package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/application/inference"
	"github.com/turtacn/PPI-Intelligence/internal/config"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/internal/testutil"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// offlineConfig serves sequences from a FASTA file and keeps every
// artifact under a temp dir.
func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	f := testutil.CrossFamilies(4)

	cfg := config.Default()
	cfg.Artifacts.Root = dir
	cfg.Resolver.Offline = true
	cfg.Resolver.SequencesFile = f.WriteFASTA(t, dir)
	cfg.Embedding.Dim = 8
	cfg.Embedding.ContextWindow = 1
	cfg.Embedding.WeightsSources = []string{"seeded"}
	cfg.Training.PairsPath = testutil.WritePairsTSV(t, dir, f.Positives())
	cfg.Training.NegativeRatio = 0.5
	cfg.Training.TestFraction = 0.25
	cfg.Training.BatchSize = 4
	cfg.Training.Epochs = 3
	cfg.Training.LearningRate = 0.01
	cfg.Training.HiddenDims = []int{8}
	cfg.Training.Dropout = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuild_RequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, nil, Needs{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Artifacts.Backend = "tape"
	_, err := Build(context.Background(), cfg, nil, Needs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tape")
}

func TestBuild_NoSequenceSource(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Resolver.SequencesFile = ""
	_, err := Build(context.Background(), cfg, nil, Needs{})
	require.Error(t, err)
}

func TestBuild_EmbeddingOnly(t *testing.T) {
	c, err := Build(context.Background(), offlineConfig(t), nil, Needs{})
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Pipeline)
	assert.Nil(t, c.Inference)
	assert.Equal(t, 8, c.Cache.Dim())
	assert.Equal(t, "memory", c.Cache.StoreName())
	assert.Empty(t, c.Checkers)

	seq, err := c.Resolver.Resolve(context.Background(), protein.Accession("P1"))
	require.NoError(t, err)
	assert.NotEmpty(t, seq)
}

func TestBuild_TrainThenServe(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig(t)
	c, err := Build(ctx, cfg, nil, Needs{Training: true, Inference: true})
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.Inference.Ready())
	out, err := c.Pipeline.Run(ctx, TrainingParams(cfg), RunOptions(cfg)...)
	require.NoError(t, err)
	assert.Equal(t, cfg.ModelKey(), out.ModelKey)

	require.NoError(t, c.Inference.Reload(ctx))
	require.True(t, c.Inference.Ready())
	p, err := c.Inference.Predict(ctx, inference.PairRequest{A: protein.ByAccession("P1"), B: protein.ByAccession("Q2")})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Probability, 0.0)
	assert.LessOrEqual(t, p.Probability, 1.0)
}

func TestConfigProjections(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Rebuild = true
	params := TrainingParams(cfg)
	assert.Equal(t, cfg.Training.Epochs, params.Epochs)
	assert.Equal(t, cfg.Embedding.Dim, params.EmbeddingDim)
	assert.True(t, params.Rebuild)

	params.HiddenDims[0] = -1
	assert.NotEqual(t, -1, cfg.Training.HiddenDims[0])

	opts := InferenceOptions(cfg)
	assert.Equal(t, 0.5, opts.Threshold)
	assert.False(t, opts.ReportInteractionType)

	pg := PostgresConfig(cfg.Database)
	assert.Equal(t, cfg.Database.DBName, pg.Database)
	assert.Equal(t, cfg.Database.MaxConns, pg.MaxOpenConns)

	cfg.Kafka.SASLMechanism = "PLAIN"
	assert.Equal(t, "PLAIN", KafkaSecurity(cfg.Kafka).SASLMechanism)
	assert.Len(t, RunOptions(cfg), 1)
}

func TestBuild_AuthEnabled(t *testing.T) {
	var hits int
	realm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/realms/lab/protocol/openid-connect/certs", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	defer realm.Close()

	cfg := offlineConfig(t)
	cfg.Auth = config.AuthConfig{Enabled: true, KeycloakURL: realm.URL, Realm: "lab", ClientID: "ppi-api"}
	c, err := Build(context.Background(), cfg, nil, Needs{Inference: true})
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Auth)
	var names []string
	for _, chk := range c.Checkers {
		names = append(names, chk.Name())
	}
	assert.Contains(t, names, "keycloak")
	assert.Equal(t, 1, hits)
}

func TestBuild_AuthRealmUnreachable(t *testing.T) {
	realm := httptest.NewServer(http.NotFoundHandler())
	defer realm.Close()

	cfg := offlineConfig(t)
	cfg.Auth = config.AuthConfig{Enabled: true, KeycloakURL: realm.URL, Realm: "lab", ClientID: "ppi-api"}
	_, err := Build(context.Background(), cfg, nil, Needs{Inference: true})
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}

//Personal.AI order the ending
