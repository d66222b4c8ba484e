package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Task modes. TaskDebug captures and logs records but ships nothing.
const (
	TaskDisabled = 0
	TaskDebug    = 1
	TaskCollect  = 2
)

// Default values applied when fields are absent from the config file.
const (
	DefaultNsqPort        = 4150
	DefaultLimit          = 100
	DefaultWrongLimit     = 3
	DefaultFlushInterval  = 1 * time.Second
	DefaultPublishTimeout = 5 * time.Second
	DefaultProcessNum     = 1
	DefaultQueueSize      = 1000
	DefaultShutdownGrace  = 5 * time.Second
)

// Config is the top-level varwatch configuration.
type Config struct {
	Mode     ModeConfig     `yaml:"mode"`
	Log      LogConfig      `yaml:"log"`
	Points   PointsConfig   `yaml:"points"`
	Output   OutputConfig   `yaml:"output"`
	Nsq      NsqConfig      `yaml:"nsq"`
	Process  ProcessConfig  `yaml:"process"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ModeConfig selects what the collector does.
type ModeConfig struct {
	// Task is 0 (disabled), 1 (debug: capture and log, no output) or
	// 2 (variable collection active).
	Task int `yaml:"task"`
}

// LogConfig configures the process-wide slog handler.
type LogConfig struct {
	// File is the log destination. Empty means stdout.
	File string `yaml:"file"`

	// Level is "debug" or "info".
	Level string `yaml:"level" env:"VARWATCH_LOG_LEVEL"`
}

// SlogLevel maps the configured level string to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	if l.Level == "debug" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// PointsConfig locates the instrumentation table.
type PointsConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig selects the delivery sinks.
type OutputConfig struct {
	// NsqMode enables publishing reports to the message queue.
	NsqMode bool `yaml:"nsq_mode"`

	// NsqWithFileMode enables the local file fallback sink.
	NsqWithFileMode bool `yaml:"nsq_with_file_mode"`

	// NsqWithFileName is the fallback file path.
	NsqWithFileName string `yaml:"nsq_with_file_name"`
}

// NsqConfig holds the message-queue endpoint and delivery tuning.
type NsqConfig struct {
	Ip   string `yaml:"ip" env:"VARWATCH_NSQ_IP"`
	Port int    `yaml:"port" env:"VARWATCH_NSQ_PORT"`

	// Topic receives report payloads; Name is echoed in each report.
	Topic string `yaml:"topic"`
	Name  string `yaml:"name"`

	// Limit is the maximum number of records per report.
	Limit int `yaml:"limit"`

	// ShakeTopic/ShakeMsg define the liveness handshake probe.
	ShakeTopic string `yaml:"shake_topic"`
	ShakeMsg   string `yaml:"shake_msg"`

	// WrongLimit is the consecutive healthcheck failures tolerated
	// before the transport is declared disconnected.
	WrongLimit int `yaml:"wrong_limit"`

	// FlushInterval is the batcher tick.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// PublishTimeout bounds the wait for an outbound publish slot; a
	// report that cannot acquire one in time is routed to the file sink.
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// Address returns the queue endpoint as host:port.
func (n NsqConfig) Address() string {
	return fmt.Sprintf("%s:%d", n.Ip, n.Port)
}

// ProcessConfig sizes the worker pool.
type ProcessConfig struct {
	// Num is the number of parallel delivery pipelines.
	Num int `yaml:"num"`

	// QueueSize is the total capacity of the bounded intake queue.
	QueueSize int `yaml:"queue_size"`
}

// ShutdownConfig bounds graceful shutdown.
type ShutdownConfig struct {
	// Grace is how long Stop waits for workers to drain and flush
	// before discarding in-flight data.
	Grace time.Duration `yaml:"grace"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	// Listen is an address like "127.0.0.1:9190". Empty disables the
	// endpoint; the standalone runner serves /metrics when set.
	Listen string `yaml:"listen"`
}

// Load reads and parses the YAML config file at path, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Nsq: NsqConfig{
			Ip:             "127.0.0.1",
			Port:           DefaultNsqPort,
			Limit:          DefaultLimit,
			WrongLimit:     DefaultWrongLimit,
			FlushInterval:  DefaultFlushInterval,
			PublishTimeout: DefaultPublishTimeout,
		},
		Process: ProcessConfig{
			Num:       DefaultProcessNum,
			QueueSize: DefaultQueueSize,
		},
		Shutdown: ShutdownConfig{Grace: DefaultShutdownGrace},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch cfg.Mode.Task {
	case TaskDisabled, TaskDebug, TaskCollect:
	default:
		return fmt.Errorf("mode.task must be 0, 1 or 2, got %d", cfg.Mode.Task)
	}
	switch cfg.Log.Level {
	case "debug", "info":
	default:
		return fmt.Errorf("log.level must be debug or info, got %q", cfg.Log.Level)
	}
	if cfg.Mode.Task == TaskDisabled {
		// Nothing else runs; skip the pipeline checks.
		return nil
	}
	if cfg.Points.Path == "" {
		return fmt.Errorf("points.path is required")
	}
	if cfg.Output.NsqMode {
		if cfg.Nsq.Ip == "" {
			return fmt.Errorf("nsq.ip is required when output.nsq_mode is on")
		}
		if cfg.Nsq.Port <= 0 || cfg.Nsq.Port > 65535 {
			return fmt.Errorf("nsq.port must be in 1..65535, got %d", cfg.Nsq.Port)
		}
		if cfg.Nsq.Topic == "" {
			return fmt.Errorf("nsq.topic is required when output.nsq_mode is on")
		}
		if cfg.Nsq.ShakeTopic == "" || cfg.Nsq.ShakeMsg == "" {
			return fmt.Errorf("nsq.shake_topic and nsq.shake_msg are required when output.nsq_mode is on")
		}
	}
	if cfg.Output.NsqWithFileMode && cfg.Output.NsqWithFileName == "" {
		return fmt.Errorf("output.nsq_with_file_name is required when output.nsq_with_file_mode is on")
	}
	if !cfg.Output.NsqMode && !cfg.Output.NsqWithFileMode && cfg.Mode.Task == TaskCollect {
		return fmt.Errorf("no output configured: enable output.nsq_mode or output.nsq_with_file_mode")
	}
	if cfg.Nsq.Limit <= 0 {
		return fmt.Errorf("nsq.limit must be positive, got %d", cfg.Nsq.Limit)
	}
	if cfg.Nsq.WrongLimit <= 0 {
		return fmt.Errorf("nsq.wrong_limit must be positive, got %d", cfg.Nsq.WrongLimit)
	}
	if cfg.Nsq.FlushInterval <= 0 {
		return fmt.Errorf("nsq.flush_interval must be positive")
	}
	if cfg.Process.Num <= 0 {
		return fmt.Errorf("process.num must be positive, got %d", cfg.Process.Num)
	}
	if cfg.Process.QueueSize <= 0 {
		return fmt.Errorf("process.queue_size must be positive, got %d", cfg.Process.QueueSize)
	}
	if cfg.Shutdown.Grace <= 0 {
		return fmt.Errorf("shutdown.grace must be positive")
	}
	return nil
}
