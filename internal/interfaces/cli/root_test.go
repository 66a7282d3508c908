package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/testutil"
)

// writeConfig lays out an offline workspace: FASTA sequences, a pairs TSV
// and a config file keeping every artifact under dir.
func writeConfig(t *testing.T) (configPath, pairsPath string) {
	t.Helper()
	dir := t.TempDir()
	f := testutil.CrossFamilies(4)
	fasta := f.WriteFASTA(t, dir)
	pairsPath = testutil.WritePairsTSV(t, dir, f.Positives())

	yaml := fmt.Sprintf(`log:
  level: error
artifacts:
  backend: local
  root: %q
resolver:
  offline: true
  sequences_file: %q
embedding:
  dim: 8
  context_window: 1
  weights_sources: [seeded]
training:
  pair_source: tsv
  pairs_path: %q
  negative_ratio: 0.5
  test_fraction: 0.25
  batch_size: 4
  epochs: 3
  learning_rate: 0.01
  hidden_dims: [8]
`, filepath.Join(dir, "artifacts"), fasta, pairsPath)
	configPath = filepath.Join(dir, "ppi.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))
	return configPath, pairsPath
}

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "ppi", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"train", "embed", "predict", "serve", "negatives", "runs", "pairs", "migrate", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "log-level", "output", "verbose", "no-color", "timeout", "server", "sequences", "offline"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
	assert.Equal(t, "c", cmd.PersistentFlags().Lookup("config").Shorthand)
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestVersionCommand_SkipsConfig(t *testing.T) {
	out, err := execute(t, "--config", "/does/not/exist.yaml", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ppi "+Version)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "`+Version+`"`)
}

func TestPersistentPreRun_Errors(t *testing.T) {
	_, err := execute(t, "--config", "/does/not/exist.yaml", "negatives")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config initialization failed")

	cfgPath, _ := writeConfig(t)
	_, err = execute(t, "--config", cfgPath, "-o", "yaml", "negatives")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
}

func TestInitConfig_FlagOverrides(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	cfg, path, err := initConfig(&RootOptions{ConfigPath: cfgPath, SequencesFile: "/tmp/other.fasta"})
	require.NoError(t, err)
	assert.Equal(t, cfgPath, path)
	assert.Equal(t, "/tmp/other.fasta", cfg.Resolver.SequencesFile)
	assert.True(t, cfg.Resolver.Offline)
	assert.Equal(t, 8, cfg.Embedding.Dim)
}

func TestGetCLIContext_Missing(t *testing.T) {
	_, err := GetCLIContext(&cobra.Command{})
	assert.Error(t, err)
}

func TestPrintResult_Formats(t *testing.T) {
	data := &pairsResult{}
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	// Without a CLI context the result is JSON.
	require.NoError(t, PrintResult(cmd, data))
	assert.Contains(t, buf.String(), `"pairs"`)

	buf.Reset()
	require.NoError(t, printTable(cmd, runList{}))
	assert.Contains(t, strings.ToUpper(buf.String()), "BEST AUC")

	buf.Reset()
	require.NoError(t, printTable(cmd, "plain"))
	assert.Equal(t, "plain\n", buf.String())
}

//Personal.AI order the ending
