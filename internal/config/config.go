package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// CaptureConfig controls live packet capture.
type CaptureConfig struct {
	Interface   string `yaml:"interface"`
	Duration    string `yaml:"duration" default:"60s"`
	SnapshotLen int32  `yaml:"snapshot_len" default:"1600"`
	Promiscuous bool   `yaml:"promiscuous" default:"true"`
	OutputDir   string `yaml:"output_dir" default:"captures"`
}

// AnalyzerConfig controls the traffic analyzer.
type AnalyzerConfig struct {
	BucketWidth string `yaml:"bucket_width" default:"1m"`
}

// ReportConfig lists the writers a finished run is sent to.
type ReportConfig struct {
	RootPath string   `yaml:"root_path" default:"reports"`
	Writers  []string `yaml:"writers" default:"[\"text\"]"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level string `yaml:"level" default:"info"`
	File  string `yaml:"file"`
}

// ProbeConfig holds the NATS settings shared by the probe publisher and subscriber.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url" default:"nats://127.0.0.1:4222"`
	Subject string `yaml:"subject" default:"ms.packets.records"`
}

// ClickHouseConfig holds the connection settings for the ClickHouse writer and querier.
type ClickHouseConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"9000"`
	Database string `yaml:"database" default:"default"`
	Username string `yaml:"username" default:"default"`
	Password string `yaml:"password"`
}

// HistoryConfig points at the local run history database. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// SMTPConfig holds the mail settings of the email writer.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" default:"587"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"` // comma separated

	// OnlyOnMigration suppresses mails for runs that do not show every migration indicator.
	OnlyOnMigration bool `yaml:"only_on_migration" default:"true"`
}

// APIConfig holds the listen addresses of ms-api.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr" default:":8080"`
	GRPCAddr   string `yaml:"grpc_addr" default:":9090"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Report     ReportConfig     `yaml:"report"`
	Log        LogConfig        `yaml:"log"`
	Probe      ProbeConfig      `yaml:"probe"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	History    HistoryConfig    `yaml:"history"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	API        APIConfig        `yaml:"api"`
}

// Default returns a Config populated only with default values.
func Default() *Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		// Only reachable if a default tag above is malformed.
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return &cfg
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Keys missing from the file keep their default values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed by the YAML types alone.
func (c *Config) Validate() error {
	if _, err := c.Capture.CaptureDuration(); err != nil {
		return err
	}
	if _, err := c.Analyzer.Width(); err != nil {
		return err
	}
	if c.Capture.SnapshotLen <= 0 {
		return fmt.Errorf("capture snapshot_len must be positive, got %d", c.Capture.SnapshotLen)
	}
	return nil
}

// CaptureDuration parses the configured capture duration.
func (c CaptureConfig) CaptureDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Duration)
	if err != nil {
		return 0, fmt.Errorf("invalid capture duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("capture duration must be a positive duration")
	}
	return d, nil
}

// Width parses the configured bucket width.
func (c AnalyzerConfig) Width() (time.Duration, error) {
	d, err := time.ParseDuration(c.BucketWidth)
	if err != nil {
		return 0, fmt.Errorf("invalid analyzer bucket_width: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("analyzer bucket_width must be a positive duration")
	}
	return d, nil
}
