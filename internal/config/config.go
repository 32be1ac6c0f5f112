package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/anime-shed/live-ocr-go/pkg/validation"
)

// EnvPrefix namespaces environment overrides, e.g. LIVEOCR_ENGINE_TYPE.
const EnvPrefix = "LIVEOCR"

type Config struct {
	Host               string        `mapstructure:"host" yaml:"host"`
	Port               string        `mapstructure:"port" yaml:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size" yaml:"max_request_body_size"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`

	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Models  ModelsConfig  `mapstructure:"models" yaml:"models"`
	Azure   AzureConfig   `mapstructure:"azure" yaml:"azure"`
	Sampler SamplerConfig `mapstructure:"sampler" yaml:"sampler"`
	Matcher MatcherConfig `mapstructure:"matcher" yaml:"matcher"`
}

// EngineConfig selects the recognition engine binding.
type EngineConfig struct {
	Type             string        `mapstructure:"type" yaml:"type"`
	Language         string        `mapstructure:"language" yaml:"language"`
	DetectionTimeout time.Duration `mapstructure:"detection_timeout" yaml:"detection_timeout"`
}

// ModelsConfig locates the runtime module and the two model blobs.
type ModelsConfig struct {
	Source        string        `mapstructure:"source" yaml:"source"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	Runtime       string        `mapstructure:"runtime" yaml:"runtime"`
	Detection     string        `mapstructure:"detection" yaml:"detection"`
	Recognition   string        `mapstructure:"recognition" yaml:"recognition"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	FetchAttempts int           `mapstructure:"fetch_attempts" yaml:"fetch_attempts"`
	AllowedHosts  []string      `mapstructure:"allowed_hosts" yaml:"allowed_hosts"`
}

type AzureConfig struct {
	AccountName string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey  string `mapstructure:"account_key" yaml:"account_key"`
	Container   string `mapstructure:"container" yaml:"container"`
	ServiceURL  string `mapstructure:"service_url" yaml:"service_url"`
}

type SamplerConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type MatcherConfig struct {
	Dictionary     string  `mapstructure:"dictionary" yaml:"dictionary"`
	MinQueryLength int     `mapstructure:"min_query_length" yaml:"min_query_length"`
	MaxResults     int     `mapstructure:"max_results" yaml:"max_results"`
	Threshold      float64 `mapstructure:"threshold" yaml:"threshold"`
	Watch          bool    `mapstructure:"watch" yaml:"watch"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     30 * time.Second,
		MaxRequestBodySize: 10 * 1024 * 1024, // 10MB
		LogLevel:           "info",
		Engine: EngineConfig{
			Type:             "tesseract",
			Language:         "eng",
			DetectionTimeout: 5 * time.Second,
		},
		Models: ModelsConfig{
			Source:        "http",
			Runtime:       "/ocr_runtime.conf",
			Detection:     "/osd.traineddata",
			Recognition:   "/eng.traineddata",
			FetchTimeout:  60 * time.Second,
			FetchAttempts: 3,
		},
		Sampler: SamplerConfig{
			Interval: 500 * time.Millisecond,
		},
		Matcher: MatcherConfig{
			Dictionary:     "brands.json",
			MinQueryLength: 4,
			MaxResults:     5,
			Threshold:      0.6,
			Watch:          true,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and LIVEOCR_* environment variables.
// A missing config file is not an error unless cfgFile names it explicitly.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("liveocr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.liveocr")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
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

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("max_request_body_size", d.MaxRequestBodySize)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("engine.type", d.Engine.Type)
	v.SetDefault("engine.language", d.Engine.Language)
	v.SetDefault("engine.detection_timeout", d.Engine.DetectionTimeout)

	v.SetDefault("models.source", d.Models.Source)
	v.SetDefault("models.base_url", d.Models.BaseURL)
	v.SetDefault("models.runtime", d.Models.Runtime)
	v.SetDefault("models.detection", d.Models.Detection)
	v.SetDefault("models.recognition", d.Models.Recognition)
	v.SetDefault("models.fetch_timeout", d.Models.FetchTimeout)
	v.SetDefault("models.fetch_attempts", d.Models.FetchAttempts)
	v.SetDefault("models.allowed_hosts", d.Models.AllowedHosts)

	v.SetDefault("azure.account_name", d.Azure.AccountName)
	v.SetDefault("azure.account_key", d.Azure.AccountKey)
	v.SetDefault("azure.container", d.Azure.Container)
	v.SetDefault("azure.service_url", d.Azure.ServiceURL)

	v.SetDefault("sampler.interval", d.Sampler.Interval)

	v.SetDefault("matcher.dictionary", d.Matcher.Dictionary)
	v.SetDefault("matcher.min_query_length", d.Matcher.MinQueryLength)
	v.SetDefault("matcher.max_results", d.Matcher.MaxResults)
	v.SetDefault("matcher.threshold", d.Matcher.Threshold)
	v.SetDefault("matcher.watch", d.Matcher.Watch)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid port: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("max_request_body_size must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.Engine.DetectionTimeout <= 0 || c.Models.FetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, detection=%s, fetch=%s)",
			c.RequestTimeout, c.Engine.DetectionTimeout, c.Models.FetchTimeout)
	}
	if c.Sampler.Interval < 50*time.Millisecond {
		return fmt.Errorf("sampler.interval must be >= 50ms (got %s)", c.Sampler.Interval)
	}
	switch c.Engine.Type {
	case "tesseract", "noop":
	default:
		return fmt.Errorf("unsupported engine.type: %q", c.Engine.Type)
	}
	switch c.Models.Source {
	case "http":
		if c.Models.BaseURL != "" {
			if err := c.urlValidator().ValidateLocation(c.Models.BaseURL); err != nil {
				return fmt.Errorf("invalid models.base_url: %w", err)
			}
		}
	case "local":
	case "azure":
		if c.Azure.Container == "" {
			return fmt.Errorf("azure.container is required when models.source is azure")
		}
		if c.Azure.AccountName == "" && c.Azure.ServiceURL == "" {
			return fmt.Errorf("azure.account_name or azure.service_url is required when models.source is azure")
		}
	default:
		return fmt.Errorf("unsupported models.source: %q", c.Models.Source)
	}
	if c.Models.FetchAttempts < 1 {
		return fmt.Errorf("models.fetch_attempts must be >= 1 (got %d)", c.Models.FetchAttempts)
	}
	if c.Matcher.MinQueryLength < 0 || c.Matcher.MaxResults < 1 {
		return fmt.Errorf("matcher limits out of range (min_query_length=%d, max_results=%d)",
			c.Matcher.MinQueryLength, c.Matcher.MaxResults)
	}
	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 1 {
		return fmt.Errorf("matcher.threshold must be within [0,1] (got %v)", c.Matcher.Threshold)
	}
	if validation.IsRemote(c.Matcher.Dictionary) {
		if err := validation.NewURLValidator().ValidateLocation(c.Matcher.Dictionary); err != nil {
			return fmt.Errorf("invalid matcher.dictionary: %w", err)
		}
	}
	return nil
}

func (c *Config) urlValidator() *validation.URLValidator {
	if len(c.Models.AllowedHosts) == 0 {
		return validation.NewURLValidator()
	}
	return validation.NewURLValidatorWithOptions([]string{"http", "https"}, c.Models.AllowedHosts)
}

// WriteDefault writes the default configuration to path as YAML.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# liveocr configuration
# Every key can be overridden with a LIVEOCR_ environment variable, e.g. LIVEOCR_ENGINE_TYPE=noop

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
