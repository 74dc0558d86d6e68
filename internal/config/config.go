package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is read once at startup and shared read-only afterwards.
type Config struct {
	Server           Server    `mapstructure:"server"`
	Log              Log       `mapstructure:"log"`
	Storage          Storage   `mapstructure:"storage"`
	ImageHost        ImageHost `mapstructure:"image_host"`
	RemoveBackground Provider  `mapstructure:"remove_background"`
	Dewatermark      Provider  `mapstructure:"dewatermark"`
}

type Server struct {
	Addr             string        `mapstructure:"addr"`
	Port             string        `mapstructure:"port"`
	APIPrefix        string        `mapstructure:"api_prefix"`
	Version          string        `mapstructure:"version"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	MetricsNamespace string        `mapstructure:"metrics_namespace"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Storage struct {
	StaticRoot       string        `mapstructure:"static_root"`
	ResultsDir       string        `mapstructure:"results_dir"`
	URLPrefix        string        `mapstructure:"url_prefix"`
	PublicBaseURL    string        `mapstructure:"public_base_url"`
	Extension        string        `mapstructure:"extension"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
	MaxDownloadBytes int64         `mapstructure:"max_download_bytes"`
}

// ResultsPath is the directory stored artifacts are written to.
func (s Storage) ResultsPath() string {
	return filepath.Join(s.StaticRoot, s.ResultsDir)
}

// ResultsURL is the public prefix stored artifacts are reachable under.
func (s Storage) ResultsURL() string {
	return strings.TrimSuffix(s.PublicBaseURL, "/") + strings.TrimSuffix(s.URLPrefix, "/") + "/" + s.ResultsDir
}

type ImageHost struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Provider struct {
	Label              string        `mapstructure:"label"`
	Endpoint           string        `mapstructure:"endpoint"`
	APIKey             string        `mapstructure:"api_key"`
	CredentialName     string        `mapstructure:"credential_name"`
	Generation         string        `mapstructure:"generation"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxBytes           int64         `mapstructure:"max_bytes"`
	OutputMode         string        `mapstructure:"output_mode"`
	DefaultContentType string        `mapstructure:"default_content_type"`
	Cost               string        `mapstructure:"cost"`
	UseImageHost       bool          `mapstructure:"use_image_host"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
}

// Credential returns the trimmed API key, or "" when it is unset or still the template placeholder.
func (p Provider) Credential() string {
	key := strings.TrimSpace(p.APIKey)
	if strings.HasPrefix(key, "YOUR_") && strings.HasSuffix(key, "_HERE") {
		return ""
	}

	return key
}

var envBindings = map[string][]string{
	"remove_background.api_key": {"AI302_API_KEY"},
	"dewatermark.api_key":       {"DEWATERMARK_API_KEY"},
	"image_host.client_id":      {"IMGUR_CLIENT_ID"},
	"server.port":               {"PORT"},
}

// Load reads .env, the optional TOML file at path (config.toml in the working directory when path is empty) and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		log.Debug().Msg("no config file found, using defaults and environment")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}

	// PORT is the platform convention and wins over addr
	if cfg.Server.Port != "" {
		cfg.Server.Addr = ":" + cfg.Server.Port
	}

	// the public host refuses anonymous uploads
	cfg.ImageHost.ClientID = strings.TrimSpace(cfg.ImageHost.ClientID)
	if cfg.ImageHost.Enabled && cfg.ImageHost.ClientID == "" {
		log.Warn().Msg("image_host.client_id is not set, disabling image host uploads")
		cfg.ImageHost.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var (
	ErrInvalidOutputMode = errors.New("invalid output mode")
	ErrInvalidGeneration = errors.New("invalid background removal generation")
	ErrInvalidMaxBytes   = errors.New("max_bytes must be positive")
)

// Validate rejects settings that would only fail later at request time.
func (c *Config) Validate() error {
	for name, p := range map[string]Provider{"remove_background": c.RemoveBackground, "dewatermark": c.Dewatermark} {
		switch p.OutputMode {
		case "passthrough", "store":
		default:
			return fmt.Errorf("%s: %w %q", name, ErrInvalidOutputMode, p.OutputMode)
		}

		if p.MaxBytes <= 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidMaxBytes)
		}
	}

	switch c.RemoveBackground.Generation {
	case "v2", "v3":
	default:
		return fmt.Errorf("%w %q", ErrInvalidGeneration, c.RemoveBackground.Generation)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":18181")
	v.SetDefault("server.port", "")
	v.SetDefault("server.api_prefix", "")
	v.SetDefault("server.version", "1.0.0")
	v.SetDefault("server.allowed_origins", []string{
		"https://www.airemover.im",
		"https://airemover.im",
		"http://localhost:18180",
		"http://127.0.0.1:18180",
	})
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.metrics_namespace", "airemover")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("storage.static_root", "static")
	v.SetDefault("storage.results_dir", "results")
	v.SetDefault("storage.url_prefix", "/static")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.extension", ".png")
	v.SetDefault("storage.download_timeout", "30s")
	v.SetDefault("storage.max_download_bytes", 64<<20)

	v.SetDefault("image_host.enabled", true)
	v.SetDefault("image_host.endpoint", "https://api.imgur.com/3/image")
	v.SetDefault("image_host.client_id", "")
	v.SetDefault("image_host.timeout", "15s")

	v.SetDefault("remove_background.label", "302.ai-removebg-v2")
	v.SetDefault("remove_background.endpoint", "https://api.302.ai/302/submit/removebg-v2")
	v.SetDefault("remove_background.api_key", "")
	v.SetDefault("remove_background.credential_name", "AI302_API_KEY")
	v.SetDefault("remove_background.generation", "v2")
	v.SetDefault("remove_background.connect_timeout", "0s")
	v.SetDefault("remove_background.read_timeout", "0s")
	v.SetDefault("remove_background.timeout", "0s")
	v.SetDefault("remove_background.max_bytes", 16<<20)
	v.SetDefault("remove_background.output_mode", "passthrough")
	v.SetDefault("remove_background.default_content_type", "image/png")
	v.SetDefault("remove_background.cost", "0.01 PTC")
	v.SetDefault("remove_background.use_image_host", true)
	v.SetDefault("remove_background.max_attempts", 3)
	v.SetDefault("remove_background.retry_delay", "2s")

	v.SetDefault("dewatermark.label", "dewatermark.ai")
	v.SetDefault("dewatermark.endpoint", "https://platform.dewatermark.ai/api/object_removal/v1/erase_watermark")
	v.SetDefault("dewatermark.api_key", "")
	v.SetDefault("dewatermark.credential_name", "DEWATERMARK_API_KEY")
	v.SetDefault("dewatermark.generation", "")
	v.SetDefault("dewatermark.connect_timeout", "0s")
	v.SetDefault("dewatermark.read_timeout", "0s")
	v.SetDefault("dewatermark.timeout", "60s")
	v.SetDefault("dewatermark.max_bytes", 10<<20)
	v.SetDefault("dewatermark.output_mode", "passthrough")
	v.SetDefault("dewatermark.default_content_type", "image/jpeg")
	v.SetDefault("dewatermark.cost", "")
	v.SetDefault("dewatermark.use_image_host", false)
	v.SetDefault("dewatermark.max_attempts", 3)
	v.SetDefault("dewatermark.retry_delay", "2s")
}
