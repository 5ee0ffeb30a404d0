package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Platforms maps the short platform identifiers to their admin base URLs.
var Platforms = map[string]string{
	"online-sociology": "https://admin.online-sociology.ru",
	"world-survey":     "https://admin.world_survey.com",
}

const DefaultPlatform = "online-sociology"

// Config is the client configuration. Zero durations for RequestTimeout and
// ExportTimeout mean "no limit"; Workers == 0 means "same as
// MaxConcurrentRequests".
type Config struct {
	Platform string `mapstructure:"platform"`
	BaseURL  string `mapstructure:"base_url"`
	Login    string `mapstructure:"login"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`

	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	Retries               int           `mapstructure:"retries"`
	RetryInterval         time.Duration `mapstructure:"retry_interval"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	Workers               int           `mapstructure:"workers"`
	ChunkSize             int           `mapstructure:"chunk_size"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	ExportTimeout         time.Duration `mapstructure:"export_timeout"`
	DownloadPrefix        string        `mapstructure:"download_prefix"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Platform:              DefaultPlatform,
		MaxConcurrentRequests: 5,
		Retries:               3,
		RetryInterval:         time.Second,
		PollInterval:          time.Second,
		ChunkSize:             64 * 1024,
		DownloadPrefix:        "storage/export",
	}
}

// SetDefaults registers Default() values on v so that config files, env
// vars and flags only need to override what they change.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("platform", d.Platform)
	v.SetDefault("base_url", "")
	v.SetDefault("login", "")
	v.SetDefault("password", "")
	v.SetDefault("token", "")
	v.SetDefault("max_concurrent_requests", d.MaxConcurrentRequests)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("retry_interval", d.RetryInterval)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("export_timeout", d.ExportTimeout)
	v.SetDefault("download_prefix", d.DownloadPrefix)
}

// Load decodes v into a Config, resolves the base URL and validates it.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve fills derived fields and validates the result.
func (c *Config) Resolve() error {
	if c.BaseURL == "" {
		u, ok := Platforms[c.Platform]
		if !ok {
			return fmt.Errorf("invalid platform: %q", c.Platform)
		}
		c.BaseURL = u
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Workers == 0 {
		c.Workers = c.MaxConcurrentRequests
	}
	return c.Validate()
}

// Validate checks ranges. It does not require credentials: a token-only
// config is valid and a config without either fails at login time.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config.base_url is required")
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("config.max_concurrent_requests must be positive")
	}
	if c.Retries <= 0 {
		return fmt.Errorf("config.retries must be positive")
	}
	if c.RetryInterval < 0 || c.PollInterval <= 0 {
		return fmt.Errorf("config.retry_interval must not be negative and config.poll_interval must be positive")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config.workers must not be negative")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("config.chunk_size must be positive")
	}
	if c.RequestTimeout < 0 || c.ExportTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// DefaultYAML renders the default configuration as a config file.
func DefaultYAML() ([]byte, error) {
	d := Default()
	doc := yaml.Node{Kind: yaml.DocumentNode}
	root := &yaml.Node{Kind: yaml.MappingNode}
	doc.Content = append(doc.Content, root)

	add := func(key, value, comment string) {
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: key, HeadComment: comment}
		v := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
		root.Content = append(root.Content, k, v)
	}
	add("platform", d.Platform, "online-sociology or world-survey; base_url overrides it")
	add("base_url", "", "")
	add("login", "", "credentials, or set token to reuse an existing session")
	add("password", "", "")
	add("token", "", "")
	add("max_concurrent_requests", fmt.Sprint(d.MaxConcurrentRequests), "requests in flight across all workers")
	add("retries", fmt.Sprint(d.Retries), "attempts for requests failing with 5xx")
	add("retry_interval", d.RetryInterval.String(), "")
	add("poll_interval", d.PollInterval.String(), "")
	add("workers", fmt.Sprint(d.Workers), "0 uses max_concurrent_requests")
	add("chunk_size", fmt.Sprint(d.ChunkSize), "download buffer in bytes")
	add("request_timeout", d.RequestTimeout.String(), "0s disables the limit")
	add("export_timeout", d.ExportTimeout.String(), "0s waits for the platform indefinitely")
	add("download_prefix", d.DownloadPrefix, "")

	return yaml.Marshal(&doc)
}
