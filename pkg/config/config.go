// Package config provides configuration management for the global-done
// tools.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/global-done/pkg/compression"
	"github.com/global-done/pkg/model"
)

// Config holds all configuration for the application.
type Config struct {
	Detect    DetectConfig    `mapstructure:"detect"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Bench     BenchConfig     `mapstructure:"bench"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// DetectConfig selects the termination protocol's shape and policies.
type DetectConfig struct {
	LeafSize     int    `mapstructure:"leaf_size"`
	BranchFactor int    `mapstructure:"branch_factor"`
	Policy       string `mapstructure:"policy"`    // last_arrival or first_observer
	Broadcast    string `mapstructure:"broadcast"` // flat or tree
	DebugTrace   bool   `mapstructure:"debug_trace"`
}

// RuntimeConfig sizes the in-process job.
type RuntimeConfig struct {
	NPEs           int `mapstructure:"npes"`
	PollIntervalUs int `mapstructure:"poll_interval_us"`
	HeapSlots      int `mapstructure:"heap_slots"`
}

// BenchConfig shapes the benchmark harness.
type BenchConfig struct {
	Episodes    int      `mapstructure:"episodes"`
	Warmup      int      `mapstructure:"warmup"`
	Modes       []string `mapstructure:"modes"` // detector, naive, allreduce
	WorkMinMs   int      `mapstructure:"work_min_ms"`
	WorkMaxMs   int      `mapstructure:"work_max_ms"`
	Seed        int64    `mapstructure:"seed"`
	OutputDir   string   `mapstructure:"output_dir"`
	Compression string   `mapstructure:"compression"` // gzip, zstd or none
}

// DatabaseConfig holds run-history persistence configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Path     string `mapstructure:"path"` // sqlite only
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds report storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// TelemetryConfig holds trace export configuration.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Protocol string `mapstructure:"protocol"` // grpc or http
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	bindLegacyEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/global-done")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from an in-memory document (useful
// for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindLegacyEnv(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("detect.leaf_size", 8)
	v.SetDefault("detect.branch_factor", 8)
	v.SetDefault("detect.policy", string(model.PolicyLastArrival))
	v.SetDefault("detect.broadcast", string(model.BroadcastTree))
	v.SetDefault("detect.debug_trace", false)

	v.SetDefault("runtime.npes", 16)
	v.SetDefault("runtime.poll_interval_us", 50)
	v.SetDefault("runtime.heap_slots", 1<<20)

	v.SetDefault("bench.episodes", 10)
	v.SetDefault("bench.warmup", 2)
	v.SetDefault("bench.modes", []string{string(model.ModeDetector)})
	v.SetDefault("bench.work_min_ms", 0)
	v.SetDefault("bench.work_max_ms", 5)
	v.SetDefault("bench.seed", 1)
	v.SetDefault("bench.output_dir", "./results")
	v.SetDefault("bench.compression", "gzip")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./results/runs.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./storage")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.protocol", "grpc")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
}

// bindLegacyEnv honors the environment variables older deployments used to
// tune the protocol. Values flow through the same validation as any other
// source.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("detect.leaf_size", "GLOBAL_GROUP_SIZE")
	_ = v.BindEnv("detect.branch_factor", "GLOBAL_BRANCH_K")
	_ = v.BindEnv("detect.debug_trace", "GLOBAL_DONE_DEBUG")
}

// Validate rejects invalid configuration outright rather than clamping it
// to defaults.
func (c *Config) Validate() error {
	if c.Detect.LeafSize < 1 {
		return fmt.Errorf("leaf size must be at least 1, got %d", c.Detect.LeafSize)
	}
	if c.Detect.BranchFactor < 2 {
		return fmt.Errorf("branch factor must be at least 2, got %d", c.Detect.BranchFactor)
	}
	if _, err := model.ParsePolicy(c.Detect.Policy); err != nil {
		return err
	}
	if _, err := model.ParseBroadcast(c.Detect.Broadcast); err != nil {
		return err
	}

	if c.Runtime.NPEs < 1 {
		return fmt.Errorf("process count must be at least 1, got %d", c.Runtime.NPEs)
	}
	if c.Runtime.PollIntervalUs < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}

	if c.Bench.Episodes < 1 {
		return fmt.Errorf("episode count must be at least 1, got %d", c.Bench.Episodes)
	}
	if c.Bench.Warmup < 0 {
		return fmt.Errorf("warmup count must not be negative")
	}
	if c.Bench.WorkMaxMs < c.Bench.WorkMinMs {
		return fmt.Errorf("work_max_ms must not be below work_min_ms")
	}
	for _, m := range c.Bench.Modes {
		if _, err := model.ParseMode(m); err != nil {
			return err
		}
	}
	if _, err := compression.ParseType(c.Bench.Compression); err != nil {
		return err
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	return nil
}

// EnsureOutputDir creates the benchmark output directory if needed.
func (c *Config) EnsureOutputDir() error {
	if c.Bench.OutputDir == "" {
		return nil
	}
	return os.MkdirAll(c.Bench.OutputDir, 0755)
}

// ReportPath returns the output path for a run's report file.
func (c *Config) ReportPath(runUUID string) string {
	return filepath.Join(c.Bench.OutputDir, runUUID+".json")
}
