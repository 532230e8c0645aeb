package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Enrich     EnrichConfig `yaml:"enrich" mapstructure:"enrich"`
	Input      InputConfig  `yaml:"input" mapstructure:"input"`
	Store      StoreConfig  `yaml:"store" mapstructure:"store"`
	Wikipedia  SourceConfig `yaml:"wikipedia" mapstructure:"wikipedia"`
	DuckDuckGo SourceConfig `yaml:"duckduckgo" mapstructure:"duckduckgo"`
	HTTP       HTTPConfig   `yaml:"http" mapstructure:"http"`
	Server     ServerConfig `yaml:"server" mapstructure:"server"`
	Log        LogConfig    `yaml:"log" mapstructure:"log"`
}

// EnrichConfig configures the enrichment run.
type EnrichConfig struct {
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	PolitenessDelay time.Duration `yaml:"politeness_delay" mapstructure:"politeness_delay"`
	OutputPath      string        `yaml:"output_path" mapstructure:"output_path"`
}

// InputConfig locates the entity list.
type InputConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Column string `yaml:"column" mapstructure:"column"`
	Sheet  string `yaml:"sheet" mapstructure:"sheet"`
}

// StoreConfig configures the checkpoint backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourceConfig configures one upstream API.
type SourceConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// HTTPConfig holds settings shared by every outbound request.
type HTTPConfig struct {
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Store drivers.
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LoadDotEnv loads variables from .env in the working directory into the
// process environment. A missing file is not an error. Variables already
// set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(".env"); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return eris.Wrap(err, "config: load .env")
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("enrich.max_retries", 3)
	v.SetDefault("enrich.retry_base_delay", "10s")
	v.SetDefault("enrich.politeness_delay", "500ms")
	v.SetDefault("enrich.output_path", "Data/disease_metadata.json")
	v.SetDefault("input.path", "Data/Disease_Symptom_Averages.csv")
	v.SetDefault("input.column", "diseases")
	v.SetDefault("input.sheet", "")
	v.SetDefault("store.driver", DriverJSON)
	v.SetDefault("store.database_url", "")
	v.SetDefault("wikipedia.base_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("wikipedia.requests_per_second", 5)
	v.SetDefault("duckduckgo.base_url", "https://api.duckduckgo.com/")
	v.SetDefault("duckduckgo.requests_per_second", 2)
	v.SetDefault("http.user_agent", "IllnessAtlas (student project)")
	v.SetDefault("http.timeout", "10s")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail halfway through a run.
func (c *Config) Validate() error {
	var errs []string

	if c.Enrich.MaxRetries <= 0 {
		errs = append(errs, "enrich.max_retries must be positive")
	}
	if c.Enrich.RetryBaseDelay < 0 {
		errs = append(errs, "enrich.retry_base_delay must not be negative")
	}
	if c.Enrich.PolitenessDelay < 0 {
		errs = append(errs, "enrich.politeness_delay must not be negative")
	}
	if c.HTTP.Timeout < 0 {
		errs = append(errs, "http.timeout must not be negative")
	}
	if c.Wikipedia.RequestsPerSecond < 0 || c.DuckDuckGo.RequestsPerSecond < 0 {
		errs = append(errs, "requests_per_second must not be negative")
	}

	switch c.Store.Driver {
	case DriverJSON:
		if strings.TrimSpace(c.Enrich.OutputPath) == "" {
			errs = append(errs, "enrich.output_path is required for the json store")
		}
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			errs = append(errs, "store.database_url is required for the "+c.Store.Driver+" store")
		}
	default:
		errs = append(errs, "store.driver must be one of json, sqlite, postgres (got \""+c.Store.Driver+"\")")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
