package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultEmbeddingDim, cfg.Embedding.Dim)
	assert.Equal(t, DefaultMaxLength, cfg.Embedding.MaxLength)
	assert.Equal(t, DefaultNegativeRatio, cfg.Training.NegativeRatio)
	assert.Equal(t, DefaultTestFraction, cfg.Training.TestFraction)
	assert.Equal(t, []int{512, 256, 128}, cfg.Training.HiddenDims)
	assert.Equal(t, DefaultDropout, cfg.Training.Dropout)
	assert.Equal(t, 0.5, cfg.Inference.Threshold)
	assert.False(t, cfg.Inference.ReportInteractionType)
	assert.False(t, cfg.Embedding.Rebuild)
	assert.Equal(t, []string{"file", "object", "http", "seeded"}, cfg.Embedding.WeightsSources)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Auth.JWKSRefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.Auth.Leeway)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Training.Epochs = 3
	cfg.Training.HiddenDims = []int{16}
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Training.Epochs)
	assert.Equal(t, []int{16}, cfg.Training.HiddenDims)
	assert.Equal(t, DefaultBatchSize, cfg.Training.BatchSize)
}

func TestApplyDefaults_DoesNotAliasSharedSlices(t *testing.T) {
	a := Default()
	a.Training.HiddenDims[0] = 1
	assert.Equal(t, 512, DefaultHiddenDims[0])
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestModelKey(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "model/model.ppi", cfg.ModelKey())
	cfg.Inference.ModelKey = "runs/42/model.ppi"
	assert.Equal(t, "runs/42/model.ppi", cfg.ModelKey())
}

func TestResolvedDevice(t *testing.T) {
	cfg := Default()
	d, ok := cfg.ResolvedDevice()
	assert.Equal(t, "cpu", d)
	assert.True(t, ok)

	cfg.Training.Device = "cuda"
	d, ok = cfg.ResolvedDevice()
	assert.Equal(t, "cpu", d)
	assert.False(t, ok)
}

//Personal.AI order the ending
