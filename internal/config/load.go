package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/photoreviver/config.yaml",
}

// envMappings maps environment variables (lower-cased) to koanf paths.
var envMappings = map[string]string{
	"port":             "server.port",
	"host":             "server.host",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"request_timeout":  "server.request_timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	"processing_workers":   "processing.workers",
	"processing_queue":     "processing.queue_size",
	"max_upload_bytes":     "processing.max_upload_bytes",
	"default_engine":       "processing.default_engine",
	"jpeg_quality":         "processing.jpeg_quality",
	"scale_factor":         "processing.scale_factor",
	"max_dimension":        "processing.max_dimension",
	"denoise_strength":     "processing.denoise_strength",
	"denoise_color":        "processing.denoise_color_strength",
	"inpaint_radius":       "processing.inpaint_radius",
	"canny_low":            "processing.canny_low",
	"canny_high":           "processing.canny_high",
	"sharpen_amount":       "processing.sharpen_amount",
	"clahe_clip_limit":     "processing.clahe_clip_limit",
	"equalize_clip_limit":  "processing.equalize_clip_limit",

	"remote_base_url":          "remote.base_url",
	"remote_api_token":         "remote.token",
	"replicate_api_token":      "remote.token",
	"remote_poll_interval":     "remote.poll_interval",
	"remote_timeout":           "remote.timeout",
	"remote_max_retries":       "remote.max_retries",
	"remote_rate_per_second":   "remote.rate_per_second",
	"remote_rate_burst":        "remote.rate_burst",
	"remote_failure_threshold": "remote.failure_threshold",
	"remote_breaker_timeout":   "remote.breaker_timeout",
	"remote_restoration_model": "remote.restoration.model",
	"remote_colorize_model":    "remote.colorization.model",
	"remote_enhance_model":     "remote.enhancement.model",

	"cache_enabled": "cache.enabled",
	"cache_path":    "cache.path",
	"cache_ttl":     "cache.ttl",

	"history_enabled":  "history.enabled",
	"history_db":       "history.database_path",
	"archive_dir":      "history.archive_directory",
	"buffer_limit":     "history.buffer_limit",
	"flush_interval":   "history.flush_interval",
	"thumbnail_size":   "history.thumbnail_size",

	"api_key":             "security.api_key",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level": "logging.level",
	"log_dir":   "logging.directory",
}

// sliceConfigPaths are accepted as comma separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// Load builds the configuration from, in increasing priority: built-in
// defaults, an optional YAML file, a .env file and the process environment.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints declared in struct tags and the few
// cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Processing.DefaultEngine == "remote" && c.Remote.Token == "" {
		return fmt.Errorf("remote engine selected as default but no remote token is configured")
	}
	if c.History.Enabled && (c.History.DatabasePath == "" || c.History.ArchiveDirectory == "") {
		return fmt.Errorf("history enabled but database path or archive directory is empty")
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps PORT -> server.port, API_KEY -> security.api_key, etc.
// Unknown variables are dropped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
