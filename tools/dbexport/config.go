package main

import (
	"fmt"
	"os"

	"github.com/ecoledger/carbon-engine/internal/conf"
	"github.com/ecoledger/carbon-engine/internal/datastore"
)

const maxBatchSize = 10000

// Config holds the configuration for the export tool.
type Config struct {
	SQLitePath string
	MySQL      datastore.MySQLConfig

	BatchSize  int
	Clean      bool
	SkipVerify bool
	Verbose    bool

	// ConfigPath names a carbon-engine config file used for unset values.
	ConfigPath string
}

// Load fills unset connection values from the carbon-engine config and validates.
func (c *Config) Load() error {
	if c.ConfigPath != "" || c.SQLitePath == "" || c.MySQL.Host == "" {
		if err := c.loadFromSettings(); err != nil && c.SQLitePath == "" {
			return fmt.Errorf("--sqlite-path is required (or provide --config): %w", err)
		}
	}

	if c.SQLitePath == "" {
		return fmt.Errorf("--sqlite-path is required")
	}
	if _, err := os.Stat(c.SQLitePath); os.IsNotExist(err) {
		return fmt.Errorf("SQLite database not found: %s", c.SQLitePath)
	}
	if c.MySQL.Host == "" || c.MySQL.Database == "" {
		return fmt.Errorf("--mysql-host and --mysql-database are required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1")
	}
	if c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch-size too large (max %d)", maxBatchSize)
	}
	return nil
}

// loadFromSettings reads the regular carbon-engine configuration, including
// its environment overrides and secret files.
func (c *Config) loadFromSettings() error {
	settings, err := conf.Load(conf.LoadOptions{ConfigFile: c.ConfigPath})
	if err != nil {
		return err
	}

	if c.SQLitePath == "" {
		c.SQLitePath = settings.Database.SQLite.Path
	}
	if c.MySQL.Host == "" {
		m := settings.Database.MySQL
		c.MySQL.Host = m.Host
		c.MySQL.Port = m.Port
		c.MySQL.Username = m.Username
		c.MySQL.Password = m.Password
		c.MySQL.Database = m.Database
	}
	return nil
}

// SanitizedTarget describes the MySQL target without the password.
func (c *Config) SanitizedTarget() string {
	return fmt.Sprintf("%s:****@tcp(%s:%s)/%s", c.MySQL.Username, c.MySQL.Host, c.MySQL.Port, c.MySQL.Database)
}
