package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds every setting of the restoration server. It is loaded once at
// startup (see Load) and treated as read-only afterwards.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Processing ProcessingConfig `koanf:"processing"`
	Remote     RemoteConfig     `koanf:"remote"`
	Cache      CacheConfig      `koanf:"cache"`
	History    HistoryConfig    `koanf:"history"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"` // Upper bound for a single restore call
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// ProcessingConfig controls the worker pool and the classical pipeline.
type ProcessingConfig struct {
	Workers        int     `koanf:"workers" validate:"min=1"`    // Number of concurrent restorations
	QueueSize      int     `koanf:"queue_size" validate:"min=1"` // Pending restorations before 503
	MaxUploadBytes int64   `koanf:"max_upload_bytes" validate:"min=1"`
	DefaultEngine  string  `koanf:"default_engine" validate:"oneof=local remote"`
	JPEGQuality    int     `koanf:"jpeg_quality" validate:"min=1,max=100"`
	ScaleFactor    float64 `koanf:"scale_factor" validate:"gt=0"`
	MaxDimension   int     `koanf:"max_dimension" validate:"min=1"`

	DenoiseStrength      float32 `koanf:"denoise_strength"`
	DenoiseColorStrength float32 `koanf:"denoise_color_strength"`
	InpaintRadius        float32 `koanf:"inpaint_radius"`
	CannyLow             float32 `koanf:"canny_low"`
	CannyHigh            float32 `koanf:"canny_high"`
	SharpenAmount        float64 `koanf:"sharpen_amount"`
	CLAHEClipLimit       float64 `koanf:"clahe_clip_limit"`
	EqualizeClipLimit    float64 `koanf:"equalize_clip_limit"`
}

// RemoteConfig describes the hosted model API. Each step maps to one model.
type RemoteConfig struct {
	BaseURL          string        `koanf:"base_url" validate:"omitempty,url"`
	Token            string        `koanf:"token"`
	PollInterval     time.Duration `koanf:"poll_interval" validate:"gt=0"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries       uint64        `koanf:"max_retries"`
	RatePerSecond    float64       `koanf:"rate_per_second" validate:"gt=0"`
	RateBurst        int           `koanf:"rate_burst" validate:"min=1"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"min=1"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout" validate:"gt=0"`

	Restoration  ModelConfig `koanf:"restoration"`
	Colorization ModelConfig `koanf:"colorization"`
	Enhancement  ModelConfig `koanf:"enhancement"`
}

type ModelConfig struct {
	Model    string `koanf:"model"`     // owner/name on the hosted API
	InputKey string `koanf:"input_key"` // Name of the image input field
}

type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Path    string        `koanf:"path"` // Empty keeps the cache in memory
	TTL     time.Duration `koanf:"ttl" validate:"gt=0"`
}

type HistoryConfig struct {
	Enabled          bool          `koanf:"enabled"`
	DatabasePath     string        `koanf:"database_path"`
	ArchiveDirectory string        `koanf:"archive_directory"`
	BufferLimit      int           `koanf:"buffer_limit" validate:"min=1"`
	FlushInterval    time.Duration `koanf:"flush_interval" validate:"gt=0"`
	ThumbnailSize    int           `koanf:"thumbnail_size" validate:"min=16"`
}

type SecurityConfig struct {
	APIKey            string        `koanf:"api_key"` // Empty disables authentication
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

type LoggingConfig struct {
	Level     string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Directory string `koanf:"directory"`
}

// defaultConfig returns the built-in defaults. The pipeline constants match
// the reference restoration heuristics.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Processing: ProcessingConfig{
			Workers:              2,
			QueueSize:            16,
			MaxUploadBytes:       10 * 1024 * 1024,
			DefaultEngine:        "local",
			JPEGQuality:          95,
			ScaleFactor:          1.5,
			MaxDimension:         2048,
			DenoiseStrength:      10,
			DenoiseColorStrength: 10,
			InpaintRadius:        3,
			CannyLow:             50,
			CannyHigh:            150,
			SharpenAmount:        0.5,
			CLAHEClipLimit:       2.0,
			EqualizeClipLimit:    0.03,
		},
		Remote: RemoteConfig{
			BaseURL:          "https://api.replicate.com/v1",
			PollInterval:     time.Second,
			Timeout:          60 * time.Second,
			MaxRetries:       3,
			RatePerSecond:    2,
			RateBurst:        4,
			FailureThreshold: 5,
			BreakerTimeout:   30 * time.Second,
			Restoration:      ModelConfig{Model: "tencentarc/gfpgan", InputKey: "img"},
			Colorization:     ModelConfig{Model: "arielreplicate/deoldify_image", InputKey: "input_image"},
			Enhancement:      ModelConfig{Model: "nightmareai/real-esrgan", InputKey: "image"},
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "",
			TTL:     time.Hour,
		},
		History: HistoryConfig{
			Enabled:          false,
			DatabasePath:     filepath.Join(".", "data", "restorations.db"),
			ArchiveDirectory: filepath.Join(".", "restored"),
			BufferLimit:      20,
			FlushInterval:    30 * time.Second,
			ThumbnailSize:    256,
		},
		Security: SecurityConfig{
			APIKey:            "",
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Directory: filepath.Join(".", "logs"),
		},
	}
}

// Address returns the host:port pair the HTTP server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
