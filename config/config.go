package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	Cluster     ClusterConfig     `mapstructure:"cluster" yaml:"cluster"`
	Node        NodeConfig        `mapstructure:"node" yaml:"node"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Archive     ArchiveConfig     `mapstructure:"archive" yaml:"archive"`
}

// ClusterConfig describes the fixed node set and what gets replicated to it
type ClusterConfig struct {
	NodeCount         int    `mapstructure:"node_count" yaml:"node_count"`
	NodePrefix        string `mapstructure:"node_prefix" yaml:"node_prefix"`
	ReplicationFactor int    `mapstructure:"replication_factor" yaml:"replication_factor"`
	Payload           string `mapstructure:"payload" yaml:"payload"`
}

// NodeConfig controls how node agents generate heartbeats
type NodeConfig struct {
	ScoreMin           float64       `mapstructure:"score_min" yaml:"score_min"`
	ScoreMax           float64       `mapstructure:"score_max" yaml:"score_max"`
	ScorePrecision     int           `mapstructure:"score_precision" yaml:"score_precision"`
	SilenceProbability float64       `mapstructure:"silence_probability" yaml:"silence_probability"`
	SilencePause       time.Duration `mapstructure:"silence_pause" yaml:"silence_pause"`
	IntervalMin        time.Duration `mapstructure:"interval_min" yaml:"interval_min"`
	IntervalMax        time.Duration `mapstructure:"interval_max" yaml:"interval_max"`
	Seed               int64         `mapstructure:"seed" yaml:"seed"`
	RunBudget          time.Duration `mapstructure:"run_budget" yaml:"run_budget"`
}

// CoordinatorConfig contains the aggregation loop timings
type CoordinatorConfig struct {
	PollTimeout    time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	Cooldown       time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	RunBudget      time.Duration `mapstructure:"run_budget" yaml:"run_budget"`
	LatencyCeiling time.Duration `mapstructure:"latency_ceiling" yaml:"latency_ceiling"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	Format    string `mapstructure:"format" yaml:"format"`
	// Dashboard logs every node's availability after each assignment
	Dashboard bool   `mapstructure:"dashboard" yaml:"dashboard"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ArchiveConfig controls where run reports are kept between runs
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	CacheMB int    `mapstructure:"cache_mb" yaml:"cache_mb"`
}

// NodeIDs returns the identifiers of the configured node set, in order.
func (c *Config) NodeIDs() []string {
	ids := make([]string, 0, c.Cluster.NodeCount)
	for i := 1; i <= c.Cluster.NodeCount; i++ {
		ids = append(ids, fmt.Sprintf("%s%d", c.Cluster.NodePrefix, i))
	}
	return ids
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("haf")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/haf")
	}

	setDefaults(v)

	v.SetEnvPrefix("HAF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the reference configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.normalize()

	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Cluster defaults
	v.SetDefault("cluster.node_count", 4)
	v.SetDefault("cluster.node_prefix", "Node-")
	v.SetDefault("cluster.replication_factor", 2)
	v.SetDefault("cluster.payload", "Replication Data")

	// Node defaults
	v.SetDefault("node.score_min", 0.1)
	v.SetDefault("node.score_max", 1.0)
	v.SetDefault("node.score_precision", 2)
	v.SetDefault("node.silence_probability", 0.05)
	v.SetDefault("node.silence_pause", "2s")
	v.SetDefault("node.interval_min", "1s")
	v.SetDefault("node.interval_max", "2s")
	v.SetDefault("node.seed", 0)
	v.SetDefault("node.run_budget", "0s")

	// Coordinator defaults
	v.SetDefault("coordinator.poll_timeout", "1s")
	v.SetDefault("coordinator.cooldown", "5s")
	v.SetDefault("coordinator.run_budget", "20s")
	v.SetDefault("coordinator.latency_ceiling", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.dashboard", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")
	v.SetDefault("metrics.path", "/metrics")

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.data_dir", "./data")
	v.SetDefault("archive.cache_mb", 16)
}

func (c *Config) normalize() {
	if c.Archive.DataDir != "" {
		c.Archive.DataDir = filepath.Clean(c.Archive.DataDir)
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate normalizes the configuration and reports every violation at once.
// A config that fails here must never start a node or the coordinator.
func (c *Config) Validate() error {
	c.normalize()

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Cluster.NodeCount < 1 {
		fail("cluster.node_count must be positive, got %d", c.Cluster.NodeCount)
	}
	if c.Cluster.ReplicationFactor < 1 {
		fail("cluster.replication_factor must be at least 1, got %d", c.Cluster.ReplicationFactor)
	} else if c.Cluster.NodeCount >= 1 && c.Cluster.ReplicationFactor > c.Cluster.NodeCount {
		fail("cluster.replication_factor %d exceeds cluster.node_count %d",
			c.Cluster.ReplicationFactor, c.Cluster.NodeCount)
	}

	if c.Node.ScoreMin < 0 || c.Node.ScoreMax > 1 || c.Node.ScoreMin > c.Node.ScoreMax {
		fail("node score range [%v, %v] must lie within [0, 1]", c.Node.ScoreMin, c.Node.ScoreMax)
	}
	if c.Node.ScorePrecision < 0 || c.Node.ScorePrecision > 6 {
		fail("node.score_precision must be between 0 and 6, got %d", c.Node.ScorePrecision)
	}
	if c.Node.SilenceProbability < 0 || c.Node.SilenceProbability > 1 {
		fail("node.silence_probability must be between 0 and 1, got %v", c.Node.SilenceProbability)
	}
	if c.Node.SilencePause < 0 {
		fail("node.silence_pause must not be negative")
	}
	if c.Node.IntervalMin <= 0 || c.Node.IntervalMax < c.Node.IntervalMin {
		fail("node interval [%v, %v] must be positive and ordered", c.Node.IntervalMin, c.Node.IntervalMax)
	}
	if c.Node.RunBudget < 0 {
		fail("node.run_budget must not be negative")
	}

	if c.Coordinator.PollTimeout <= 0 {
		fail("coordinator.poll_timeout must be positive")
	}
	if c.Coordinator.LatencyCeiling <= 0 {
		fail("coordinator.latency_ceiling must be positive")
	}
	if c.Coordinator.Cooldown < 0 {
		fail("coordinator.cooldown must not be negative")
	}
	if c.Coordinator.RunBudget < 0 {
		fail("coordinator.run_budget must not be negative")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		fail("logging.level %q is not one of trace, debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		fail("logging.format %q is not one of text, json", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		fail("metrics.addr is required when metrics are enabled")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		fail("metrics.path must start with '/'")
	}
	if c.Archive.Enabled && c.Archive.DataDir == "" {
		fail("archive.data_dir is required when the archive is enabled")
	}

	return errors.Join(errs...)
}
