// Package conf loads engine settings from config.yaml, a .env file and the
// environment, in increasing order of precedence.
package conf

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
)

// AppName names the config directories.
const AppName = "carbon-engine"

// Settings is the complete engine configuration.
type Settings struct {
	Debug      bool                 `mapstructure:"debug" yaml:"debug"`
	Engine     EngineSettings       `mapstructure:"engine" yaml:"engine"`
	Embedding  EmbeddingSettings    `mapstructure:"embedding" yaml:"embedding"`
	Generative GenerativeSettings   `mapstructure:"generative" yaml:"generative"`
	Database   DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Jobs       JobsSettings         `mapstructure:"jobs" yaml:"jobs"`
	API        APISettings          `mapstructure:"api" yaml:"api"`
	Logging    logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Telemetry  TelemetrySettings    `mapstructure:"telemetry" yaml:"telemetry"`
}

// EngineSettings holds the decision policy.
type EngineSettings struct {
	SimilarityThreshold   float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	RetrievalConcurrency  int     `mapstructure:"retrieval_concurrency" yaml:"retrieval_concurrency"`
	GenerativeConcurrency int     `mapstructure:"generative_concurrency" yaml:"generative_concurrency"`
	GenerativeTimeoutMs   int     `mapstructure:"generative_timeout_ms" yaml:"generative_timeout_ms"`
	TopK                  int     `mapstructure:"top_k" yaml:"top_k"`
	MaxInteractiveEntries int     `mapstructure:"max_interactive_entries" yaml:"max_interactive_entries"`
	ReviewConfidence      float64 `mapstructure:"review_confidence" yaml:"review_confidence"`
}

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	APIKeyFile        string        `mapstructure:"api_key_file" yaml:"api_key_file"`
	Dimensions        int           `mapstructure:"dimensions" yaml:"dimensions"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	// CacheTTL of zero uses the client default; negative disables the cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// GenerativeSettings configures the fallback model.
type GenerativeSettings struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint          string  `mapstructure:"endpoint" yaml:"endpoint"`
	Model             string  `mapstructure:"model" yaml:"model"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	APIKeyFile        string  `mapstructure:"api_key_file" yaml:"api_key_file"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// DatabaseSettings selects the calculation store.
type DatabaseSettings struct {
	Type               string         `mapstructure:"type" yaml:"type"` // sqlite or mysql
	SQLite             SQLiteSettings `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL              MySQLSettings  `mapstructure:"mysql" yaml:"mysql"`
	SlowQueryThreshold time.Duration  `mapstructure:"slow_query_threshold" yaml:"slow_query_threshold"`
	MaxOpenConns       int            `mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

// SQLiteSettings holds the database file path.
type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MySQLSettings holds MySQL connection parameters.
type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	// PasswordFile, when set, is read instead of Password.
	PasswordFile string `mapstructure:"password_file" yaml:"password_file"`
}

// JobsSettings bounds the asynchronous job queue.
type JobsSettings struct {
	MaxPending  int `mapstructure:"max_pending" yaml:"max_pending"`
	MaxArchived int `mapstructure:"max_archived" yaml:"max_archived"`
	ChunkSize   int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// APISettings configures the HTTP server.
type APISettings struct {
	Listen          string        `mapstructure:"listen" yaml:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Metrics         bool          `mapstructure:"metrics" yaml:"metrics"`
}

// TelemetrySettings enables error reporting to Sentry.
type TelemetrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	SentryDSN   string `mapstructure:"sentry_dsn" yaml:"sentry_dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// LoadOptions overrides where settings are read from.
type LoadOptions struct {
	// ConfigFile is an explicit config path; empty searches the default paths.
	ConfigFile string
	// EnvFile is loaded before the environment is read; empty means ".env".
	EnvFile string
}

// Load reads settings. A missing config file is not an error: defaults and
// the environment still apply.
func Load(opts LoadOptions) (*Settings, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Newf("error unmarshaling config into struct: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.Newf("error validating settings: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return settings, nil
}

// loadEnvFile loads KEY=value pairs without overriding variables that are
// already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Newf("error loading env file %s: %w", path, err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return nil
}

func readConfigFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range DefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.Newf("error reading config file: %w", err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return nil
}

// DefaultConfigPaths lists the directories searched for config.yaml, in order.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	return append(paths, filepath.Join("/etc", AppName))
}
