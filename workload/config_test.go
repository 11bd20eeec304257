package workload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/benz9527/xset/lib/tree"
	"github.com/benz9527/xset/observability"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, []tree.Strategy{tree.AVL, tree.RedBlack}, cfg.Strategies())
	require.Equal(t, observability.MetricsNone, cfg.MetricsKind())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xset.yaml")
	content := `
strategy: rb
keys: 128
ops: 4096
pattern: reverse
mix:
  add: 1
  remove: 0
  contains: 0
workers: 2
seed: 42
validateEvery: 64
metrics: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "rb", cfg.Strategy)
	require.Equal(t, []tree.Strategy{tree.RedBlack}, cfg.Strategies())
	require.Equal(t, 128, cfg.Keys)
	require.Equal(t, 4096, cfg.Ops)
	require.Equal(t, PatternReverse, cfg.Pattern)
	require.Equal(t, MixConfig{Add: 1}, cfg.Mix)
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, uint64(42), cfg.Seed)
	require.Equal(t, 64, cfg.ValidateEvery)
	require.Equal(t, observability.MetricsConsole, cfg.MetricsKind())
	// Absent fields keep the defaults.
	require.Equal(t, ":9464", cfg.MetricsAddr)
	require.Equal(t, "INFO", cfg.LogLevel)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("keys: [1, 2"), 0o600))
	_, err = LoadConfig(broken)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{
		Strategy:      "splay",
		Keys:          0,
		Ops:           -1,
		Pattern:       "zigzag",
		Mix:           MixConfig{},
		Workers:       0,
		ValidateEvery: -1,
		Metrics:       "statsd",
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 8)

	cfg = DefaultConfig()
	cfg.Metrics = string(observability.MetricsPrometheus)
	cfg.MetricsAddr = " "
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Mix = MixConfig{Add: 1, Remove: -1, Contains: 1}
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Workers = maxWorkers + 1
	require.Error(t, cfg.Validate())

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}
