package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces the automatic environment lookup, e.g.
// CARBON_JOBS_CHUNK_SIZE for jobs.chunk_size.
const EnvPrefix = "CARBON"

// envBinding maps an environment variable onto a config key.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

// getEnvBindings lists the explicitly named variables. They take precedence
// over the config file.
func getEnvBindings() []envBinding {
	return []envBinding{
		// Decision policy
		{"engine.similarity_threshold", "CARBON_SIMILARITY_THRESHOLD", validateEnvUnitInterval},
		{"engine.retrieval_concurrency", "CARBON_RETRIEVAL_CONCURRENCY", validateEnvPositiveInt},
		{"engine.generative_concurrency", "CARBON_GENERATIVE_CONCURRENCY", validateEnvPositiveInt},
		{"engine.generative_timeout_ms", "CARBON_GENERATIVE_TIMEOUT_MS", validateEnvPositiveInt},
		{"engine.max_interactive_entries", "CARBON_MAX_INTERACTIVE_ENTRIES", validateEnvPositiveInt},

		// Providers
		{"embedding.endpoint", "CARBON_EMBEDDING_ENDPOINT", validateEnvURL},
		{"embedding.model", "CARBON_EMBEDDING_MODEL", nil},
		{"embedding.api_key", "CARBON_EMBEDDING_API_KEY", nil},
		{"embedding.api_key_file", "CARBON_EMBEDDING_API_KEY_FILE", nil},
		{"generative.enabled", "CARBON_GENERATIVE_ENABLED", validateEnvBool},
		{"generative.endpoint", "CARBON_GENERATIVE_ENDPOINT", validateEnvURL},
		{"generative.model", "CARBON_GENERATIVE_MODEL", nil},
		{"generative.api_key", "CARBON_GENERATIVE_API_KEY", nil},
		{"generative.api_key_file", "CARBON_GENERATIVE_API_KEY_FILE", nil},

		// Storage
		{"database.type", "CARBON_DB_TYPE", validateEnvDBType},
		{"database.sqlite.path", "CARBON_DB_PATH", nil},
		{"database.mysql.host", "CARBON_MYSQL_HOST", nil},
		{"database.mysql.port", "CARBON_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "CARBON_MYSQL_USERNAME", nil},
		{"database.mysql.password", "CARBON_MYSQL_PASSWORD", nil},
		{"database.mysql.password_file", "CARBON_MYSQL_PASSWORD_FILE", nil},
		{"database.mysql.database", "CARBON_MYSQL_DATABASE", nil},

		// Surfaces
		{"api.listen", "CARBON_API_LISTEN", nil},
		{"telemetry.sentry_dsn", "CARBON_SENTRY_DSN", nil},
		{"logging.default_level", "CARBON_LOG_LEVEL", validateEnvLogLevel},
	}
}

// configureEnvironmentVariables enables the prefixed automatic lookup and
// binds the named variables, validating any that are set.
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var problems []string
	for _, b := range getEnvBindings() {
		if err := v.BindEnv(b.ConfigKey, b.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", b.EnvVar, err))
			continue
		}
		if b.Validate == nil {
			continue
		}
		if value := os.Getenv(b.EnvVar); value != "" {
			if err := b.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", b.EnvVar, value, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvUnitInterval(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("not a number: %w", err)
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("must be between 0 and 1, got %g", f)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvPort(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvURL(value string) error {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return fmt.Errorf("must start with http:// or https://")
	}
	return nil
}

func validateEnvDBType(value string) error {
	switch strings.ToLower(value) {
	case "sqlite", "mysql":
		return nil
	}
	return fmt.Errorf("must be sqlite or mysql")
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("must be one of trace, debug, info, warn, error")
}
