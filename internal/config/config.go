package config

import (
	"fmt"
	"time"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Guard      GuardConfig      `yaml:"guard"`
	Worker     WorkerConfig     `yaml:"worker"`
	Generation GenerationConfig `yaml:"generation"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// GuardConfig is the pipeline's entire tuning surface. Thresholds may be hot
// reloaded; model endpoints and the reference set path are startup-fixed.
type GuardConfig struct {
	MaxPromptChars int   `yaml:"max_prompt_chars"`
	MaxImageBytes  int64 `yaml:"max_image_bytes"`
	MaxImagePixels int64 `yaml:"max_image_pixels"`

	TextAllowThreshold float64 `yaml:"text_allow_threshold"`
	TextDenyThreshold  float64 `yaml:"text_deny_threshold"`
	NSFWThreshold      float64 `yaml:"nsfw_threshold"`
	ImageMargin        float64 `yaml:"image_margin"`

	ReferenceSetPath string `yaml:"reference_set_path"`

	Embedding EmbeddingConfig       `yaml:"embedding"`
	Vision    VisionConfig          `yaml:"vision"`
	Injection InjectionFilterConfig `yaml:"injection"`
	Policy    PolicyFilterConfig    `yaml:"policy"`

	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type EmbeddingConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type VisionConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type InjectionFilterConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BlockThreshold float64 `yaml:"block_threshold"`
}

type PolicyFilterConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

type WorkerConfig struct {
	PoolSize     int           `yaml:"pool_size"`
	QueueName    string        `yaml:"queue_name"`
	LeaseTimeout time.Duration `yaml:"lease_timeout"`
	Retention    time.Duration `yaml:"retention"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

type GenerationConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "foodguard",
			User:            "foodguard",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Guard: GuardConfig{
			MaxPromptChars:     800,
			MaxImageBytes:      5 * 1024 * 1024,
			MaxImagePixels:     1536 * 1536,
			TextAllowThreshold: 0.55,
			TextDenyThreshold:  0.75,
			NSFWThreshold:      0.5,
			ImageMargin:        0.1,
			ReferenceSetPath:   "configs/reference_set.json",
			Embedding: EmbeddingConfig{
				BaseURL:    "http://localhost:8081/v1",
				Model:      "all-MiniLM-L6-v2",
				Timeout:    10 * time.Second,
				MaxRetries: 2,
			},
			Vision: VisionConfig{
				BaseURL: "http://localhost:8082",
				Timeout: 15 * time.Second,
			},
			Injection: InjectionFilterConfig{
				Enabled:        true,
				BlockThreshold: 0.8,
			},
			Policy: PolicyFilterConfig{
				Enabled:           false,
				BundlePath:        "configs/policies",
				EvaluationTimeout: 100 * time.Millisecond,
			},
			CacheTTL: time.Hour,
		},
		Worker: WorkerConfig{
			PoolSize:     4,
			QueueName:    "foodguard:tasks",
			LeaseTimeout: 2 * time.Minute,
			Retention:    24 * time.Hour,
			ReapInterval: 30 * time.Second,
		},
		Generation: GenerationConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
			Timeout: 60 * time.Second,
		},
	}
}

// Validate enforces the startup invariants of the configuration surface. Any
// violation is fatal: the process refuses to start rather than run with a
// permissive or nonsensical guardrail.
func (c *Config) Validate() error {
	thresholds := map[string]float64{
		"guard.text_allow_threshold":      c.Guard.TextAllowThreshold,
		"guard.text_deny_threshold":       c.Guard.TextDenyThreshold,
		"guard.nsfw_threshold":            c.Guard.NSFWThreshold,
		"guard.image_margin":              c.Guard.ImageMargin,
		"guard.injection.block_threshold": c.Guard.Injection.BlockThreshold,
	}
	for name, v := range thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s = %v, must be in [0,1]", types.ErrInvalidConfig, name, v)
		}
	}
	if c.Guard.MaxPromptChars <= 0 {
		return fmt.Errorf("%w: guard.max_prompt_chars must be > 0", types.ErrInvalidConfig)
	}
	if c.Guard.MaxImageBytes <= 0 {
		return fmt.Errorf("%w: guard.max_image_bytes must be > 0", types.ErrInvalidConfig)
	}
	if c.Guard.MaxImagePixels <= 0 {
		return fmt.Errorf("%w: guard.max_image_pixels must be > 0", types.ErrInvalidConfig)
	}
	if c.Worker.PoolSize < 1 {
		return fmt.Errorf("%w: worker.pool_size must be >= 1", types.ErrInvalidConfig)
	}
	if c.Worker.LeaseTimeout <= 0 {
		return fmt.Errorf("%w: worker.lease_timeout must be > 0", types.ErrInvalidConfig)
	}
	return nil
}
