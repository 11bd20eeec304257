package workload

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/safeopen"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/benz9527/xset/lib/infra"
	"github.com/benz9527/xset/lib/tree"
	"github.com/benz9527/xset/observability"
)

type Pattern string

const (
	PatternSequential Pattern = "sequential"
	PatternReverse    Pattern = "reverse"
	PatternRandom     Pattern = "random"
)

const (
	StrategyBoth = "both"
	maxWorkers   = 1024
)

// MixConfig weights the operation kinds. A zero weight disables the kind.
type MixConfig struct {
	Add      int `yaml:"add"`
	Remove   int `yaml:"remove"`
	Contains int `yaml:"contains"`
}

func (mix MixConfig) total() int {
	return mix.Add + mix.Remove + mix.Contains
}

type Config struct {
	Strategy      string    `yaml:"strategy"`
	Keys          int       `yaml:"keys"`
	Ops           int       `yaml:"ops"`
	Pattern       Pattern   `yaml:"pattern"`
	Mix           MixConfig `yaml:"mix"`
	Workers       int       `yaml:"workers"`
	Seed          uint64    `yaml:"seed"`
	ValidateEvery int       `yaml:"validateEvery"`
	Metrics       string    `yaml:"metrics"`
	MetricsAddr   string    `yaml:"metricsAddr"`
	ReportDB      string    `yaml:"reportDB"`
	LogLevel      string    `yaml:"logLevel"`
}

func DefaultConfig() *Config {
	return &Config{
		Strategy: StrategyBoth,
		Keys:     10_000,
		Ops:      100_000,
		Pattern:  PatternRandom,
		Mix: MixConfig{
			Add:      5,
			Remove:   3,
			Contains: 2,
		},
		Workers:       4,
		Seed:          1,
		ValidateEvery: 10_000,
		Metrics:       string(observability.MetricsNone),
		MetricsAddr:   ":9464",
		ReportDB:      "",
		LogLevel:      "INFO",
	}
}

// LoadConfig reads the YAML file over the default config. The path is
// resolved beneath its own directory, so a symlink is not able to escape.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if len(strings.TrimSpace(path)) == 0 {
		return cfg, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[workload] config path "+path)
	}
	data, err := safeopen.ReadFileBeneath(filepath.Dir(abs), filepath.Base(abs))
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[workload] read config "+path)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[workload] parse config "+path)
	}
	return cfg, nil
}

// Strategies lists the balancing strategies to run. The config should
// be validated in advance.
func (cfg *Config) Strategies() []tree.Strategy {
	if strings.EqualFold(strings.TrimSpace(cfg.Strategy), StrategyBoth) {
		return []tree.Strategy{tree.AVL, tree.RedBlack}
	}
	s, err := tree.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil
	}
	return []tree.Strategy{s}
}

func (cfg *Config) MetricsKind() observability.MetricsExporterKind {
	kind, _ := observability.ParseMetricsExporterKind(cfg.Metrics)
	return kind
}

// Validate reports every invalid field at once.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return infra.NewErrorStack("[workload] nil config")
	}
	var err error
	if !strings.EqualFold(strings.TrimSpace(cfg.Strategy), StrategyBoth) {
		if _, e := tree.ParseStrategy(cfg.Strategy); e != nil {
			err = multierr.Append(err, e)
		}
	}
	if cfg.Keys <= 0 {
		err = multierr.Append(err, infra.NewErrorStack(fmt.Sprintf("[workload] keys %d should be positive", cfg.Keys)))
	}
	if cfg.Ops <= 0 {
		err = multierr.Append(err, infra.NewErrorStack(fmt.Sprintf("[workload] ops %d should be positive", cfg.Ops)))
	}
	switch cfg.Pattern {
	case PatternSequential, PatternReverse, PatternRandom:
	default:
		err = multierr.Append(err, infra.NewErrorStack("[workload] unknown pattern "+string(cfg.Pattern)))
	}
	if cfg.Mix.Add < 0 || cfg.Mix.Remove < 0 || cfg.Mix.Contains < 0 || cfg.Mix.total() <= 0 {
		err = multierr.Append(err, infra.NewErrorStack(fmt.Sprintf("[workload] invalid mix %+v", cfg.Mix)))
	}
	if cfg.Workers <= 0 || cfg.Workers > maxWorkers {
		err = multierr.Append(err, infra.NewErrorStack(fmt.Sprintf("[workload] workers %d should be in [1, %d]", cfg.Workers, maxWorkers)))
	}
	if cfg.ValidateEvery < 0 {
		err = multierr.Append(err, infra.NewErrorStack(fmt.Sprintf("[workload] validateEvery %d should not be negative", cfg.ValidateEvery)))
	}
	if kind, e := observability.ParseMetricsExporterKind(cfg.Metrics); e != nil {
		err = multierr.Append(err, e)
	} else if kind == observability.MetricsPrometheus && len(strings.TrimSpace(cfg.MetricsAddr)) == 0 {
		err = multierr.Append(err, infra.NewErrorStack("[workload] prometheus metrics requires metricsAddr"))
	}
	return err
}
