package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Spreadwatch SpreadwatchConfig `yaml:"spreadwatch"`
	Session     SessionConfig     `yaml:"session"`
	Reader      ReaderConfig      `yaml:"reader"`
	Source      SourceConfig      `yaml:"source"`
	Writer      WriterConfig      `yaml:"writer"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type SpreadwatchConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// SessionConfig holds the capture window and analysis thresholds.
type SessionConfig struct {
	Symbol               string        `yaml:"symbol"`
	Duration             time.Duration `yaml:"duration"`
	SpreadAlertThreshold float64       `yaml:"spread_alert_threshold"`
	RecoveryThreshold    float64       `yaml:"recovery_threshold"`
	WideningThreshold    float64       `yaml:"widening_threshold"`
	WindowSize           int           `yaml:"window_size"`
	WallVolumeThreshold  float64       `yaml:"wall_volume_threshold"`
	MaxDepth             int           `yaml:"max_depth"`
	UpdateBuffer         int           `yaml:"update_buffer"`
}

// EffectiveRecoveryThreshold falls back to the spread alert threshold when no
// dedicated recovery band is configured.
func (s SessionConfig) EffectiveRecoveryThreshold() float64 {
	if s.RecoveryThreshold > 0 {
		return s.RecoveryThreshold
	}
	return s.SpreadAlertThreshold
}

type ReaderConfig struct {
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type SourceConfig struct {
	Binance BinanceSourceConfig `yaml:"binance"`
}

type BinanceSourceConfig struct {
	APIKey    string                `yaml:"api_key"`
	APISecret string                `yaml:"api_secret"`
	Snapshot  BinanceSnapshotConfig `yaml:"snapshot"`
	Stream    BinanceStreamConfig   `yaml:"stream"`
}

type BinanceSnapshotConfig struct {
	URL   string `yaml:"url"`
	Limit int    `yaml:"limit"`
}

const (
	TransportSDK       = "sdk"
	TransportWebsocket = "websocket"
)

type BinanceStreamConfig struct {
	Transport  string `yaml:"transport"`
	URL        string `yaml:"url"`
	IntervalMs int    `yaml:"interval_ms"`
}

type WriterConfig struct {
	OutputDir string           `yaml:"output_dir"`
	Report    FileOutputConfig `yaml:"report"`
	ChartData FileOutputConfig `yaml:"chart_data"`
	Archive   ArchiveConfig    `yaml:"archive"`
}

type FileOutputConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Filename string `yaml:"filename"`
}

type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Spreadwatch: SpreadwatchConfig{Name: "spreadwatch", Version: "dev"},
		Session: SessionConfig{
			Symbol:               "BTCUSDT",
			Duration:             10 * time.Minute,
			SpreadAlertThreshold: 0.01,
			WideningThreshold:    0.0005,
			WindowSize:           10,
			WallVolumeThreshold:  100,
			MaxDepth:             200,
			UpdateBuffer:         1024,
		},
		Reader: ReaderConfig{
			Timeout:   30 * time.Second,
			RateLimit: RateLimitConfig{RequestsPerSecond: 5, BurstSize: 1},
			Retry:     RetryConfig{MaxAttempts: 3},
		},
		Source: SourceConfig{
			Binance: BinanceSourceConfig{
				Snapshot: BinanceSnapshotConfig{URL: "https://api.binance.com", Limit: 1000},
				Stream: BinanceStreamConfig{
					Transport:  TransportSDK,
					URL:        "wss://stream.binance.com:9443/ws",
					IntervalMs: 1000,
				},
			},
		},
		Writer: WriterConfig{
			OutputDir: "out",
			Report:    FileOutputConfig{Enabled: true, Filename: "analysis_report.txt"},
			ChartData: FileOutputConfig{Enabled: true, Filename: "chart_data.json"},
			Archive:   ArchiveConfig{Enabled: false, Compression: "snappy"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// LoadConfig reads the YAML file at path on top of Default, applies
// environment overrides and validates the result. An empty path yields the
// defaults alone.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		path = resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&config)

	config.Session.Symbol = NormalizeSymbol(config.Session.Symbol)
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("SPREADWATCH_SYMBOL"); v != "" {
		config.Session.Symbol = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		config.Source.Binance.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		config.Source.Binance.APISecret = strings.TrimSpace(v)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Spreadwatch.Name == "" {
		return fmt.Errorf("spreadwatch.name is required")
	}

	s := cfg.Session
	if s.Symbol == "" {
		return fmt.Errorf("session.symbol is required")
	}
	if s.Duration <= 0 {
		return fmt.Errorf("session.duration must be greater than 0")
	}
	if s.SpreadAlertThreshold < 0 {
		return fmt.Errorf("session.spread_alert_threshold must not be negative")
	}
	if s.RecoveryThreshold < 0 {
		return fmt.Errorf("session.recovery_threshold must not be negative")
	}
	if s.WideningThreshold < 0 {
		return fmt.Errorf("session.widening_threshold must not be negative")
	}
	if s.WindowSize <= 0 {
		return fmt.Errorf("session.window_size must be greater than 0")
	}
	if s.WallVolumeThreshold < 0 {
		return fmt.Errorf("session.wall_volume_threshold must not be negative")
	}
	if s.MaxDepth < 0 {
		return fmt.Errorf("session.max_depth must not be negative")
	}
	if s.UpdateBuffer <= 0 {
		return fmt.Errorf("session.update_buffer must be greater than 0")
	}

	if cfg.Source.Binance.Snapshot.Limit <= 0 {
		return fmt.Errorf("source.binance.snapshot.limit must be greater than 0")
	}
	switch cfg.Source.Binance.Stream.Transport {
	case TransportSDK:
	case TransportWebsocket:
		if cfg.Source.Binance.Stream.URL == "" {
			return fmt.Errorf("source.binance.stream.url is required for the websocket transport")
		}
	default:
		return fmt.Errorf("source.binance.stream.transport '%s' is invalid", cfg.Source.Binance.Stream.Transport)
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
