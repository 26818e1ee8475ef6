package conf

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError collects every settings problem found.
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateEngineSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateProviderSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateJobsSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateAPISettings(&settings.API); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateTelemetrySettings(&settings.Telemetry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateEngineSettings(settings *Settings) error {
	cfg := settings.EngineConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if settings.Engine.MaxInteractiveEntries < 1 {
		return fmt.Errorf("engine.max_interactive_entries must be at least 1")
	}
	return nil
}

func validateProviderSettings(settings *Settings) error {
	var errs []string
	if settings.Embedding.Endpoint == "" {
		errs = append(errs, "embedding.endpoint is required")
	}
	if settings.Embedding.Model == "" {
		errs = append(errs, "embedding.model is required")
	}
	if settings.Embedding.Dimensions < 0 {
		errs = append(errs, "embedding.dimensions must not be negative")
	}
	if settings.Generative.Enabled {
		if settings.Generative.Endpoint == "" {
			errs = append(errs, "generative.endpoint is required when the generative fallback is enabled")
		}
		if settings.Generative.Model == "" {
			errs = append(errs, "generative.model is required when the generative fallback is enabled")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("provider settings errors: %v", errs)
	}
	return nil
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	var errs []string
	switch strings.ToLower(settings.Type) {
	case "sqlite":
		if settings.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path is required for sqlite")
		}
	case "mysql":
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			errs = append(errs, "database.mysql.host and database.mysql.database are required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type %q must be sqlite or mysql", settings.Type))
	}
	if settings.MaxOpenConns < 0 {
		errs = append(errs, "database.max_open_conns must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("database settings errors: %v", errs)
	}
	return nil
}

func validateJobsSettings(settings *Settings) error {
	var errs []string
	jobs := settings.Jobs
	if jobs.MaxPending < 1 {
		errs = append(errs, "jobs.max_pending must be at least 1")
	}
	if jobs.MaxArchived < 1 {
		errs = append(errs, "jobs.max_archived must be at least 1")
	}
	if jobs.ChunkSize < 1 {
		errs = append(errs, "jobs.chunk_size must be at least 1")
	}
	// A chunk runs as one interactive batch.
	if limit := settings.Engine.MaxInteractiveEntries; limit > 0 && jobs.ChunkSize > limit {
		errs = append(errs, fmt.Sprintf("jobs.chunk_size %d exceeds engine.max_interactive_entries %d", jobs.ChunkSize, limit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("jobs settings errors: %v", errs)
	}
	return nil
}

func validateAPISettings(settings *APISettings) error {
	if settings.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("api.listen %q is not host:port: %w", settings.Listen, err)
	}
	if settings.ShutdownTimeout < 0 {
		return fmt.Errorf("api.shutdown_timeout must not be negative")
	}
	return nil
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.Enabled && settings.SentryDSN == "" {
		return fmt.Errorf("telemetry.sentry_dsn is required when telemetry is enabled")
	}
	return nil
}
