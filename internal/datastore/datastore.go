// Package datastore opens the calculation database (SQLite or MySQL) and
// migrates the engine's tables. Repositories live in the repository subpackage.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecoledger/carbon-engine/internal/datastore/entities"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
)

const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"

	// MemoryPath opens a private in-memory SQLite database.
	MemoryPath = ":memory:"

	defaultSlowQueryThreshold = 200 * time.Millisecond
	sqliteBusyTimeoutMs       = 5000
)

// MySQLConfig holds MySQL connection parameters.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// Config selects and configures the database backend.
type Config struct {
	Type               string
	SQLitePath         string
	MySQL              MySQLConfig
	SlowQueryThreshold time.Duration
	MaxOpenConns       int
}

// Open connects to the configured database and runs migrations.
func Open(cfg Config, log logger.Logger) (*gorm.DB, error) {
	log = logger.Or(log, "datastore")
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = defaultSlowQueryThreshold
	}

	var (
		dialector gorm.Dialector
		maxOpen   = cfg.MaxOpenConns
		target    string
	)

	switch strings.ToLower(cfg.Type) {
	case "", TypeSQLite:
		dsn, memory, err := sqliteDSN(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
		target = cfg.SQLitePath
		if memory {
			// every connection to :memory: is a separate database
			maxOpen = 1
		}
	case TypeMySQL:
		if err := validateMySQLConfig(&cfg.MySQL); err != nil {
			return nil, err
		}
		dialector = mysql.Open(mysqlDSN(&cfg.MySQL))
		target = cfg.MySQL.Host + "/" + cfg.MySQL.Database
	default:
		return nil, errors.Newf("unsupported database type %q", cfg.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log.Module("sql"), cfg.SlowQueryThreshold),
	})
	if err != nil {
		return nil, errors.Newf("failed to open %s database: %w", cfg.Type, err).
			Component("datastore").
			Category(errors.CategoryPersistence).
			Context("target", target).
			Build()
	}

	if maxOpen > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.New(err).Component("datastore").Category(errors.CategoryPersistence).Build()
		}
		sqlDB.SetMaxOpenConns(maxOpen)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database opened", logger.String("type", cfg.Type), logger.String("target", target))
	return db, nil
}

// OpenMemory opens a migrated in-memory SQLite database.
func OpenMemory(log logger.Logger) (*gorm.DB, error) {
	return Open(Config{Type: TypeSQLite, SQLitePath: MemoryPath}, log)
}

// Migrate creates or updates the engine's tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entities.ActivityEntry{},
		&entities.EmissionFactor{},
		&entities.Calculation{},
	); err != nil {
		return errors.Newf("failed to migrate database: %w", err).
			Component("datastore").
			Category(errors.CategoryPersistence).
			Build()
	}
	return nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) (dsn string, memory bool, err error) {
	if path == "" || path == MemoryPath {
		return "file::memory:", true, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", false, errors.Newf("failed to create database directory %s: %w", dir, err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Build()
		}
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, sqliteBusyTimeoutMs), false, nil
}

func validateMySQLConfig(cfg *MySQLConfig) error {
	var missing []string
	if cfg.Host == "" {
		missing = append(missing, "host")
	}
	if cfg.Username == "" {
		missing = append(missing, "username")
	}
	if cfg.Database == "" {
		missing = append(missing, "database")
	}
	if len(missing) > 0 {
		return errors.Newf("mysql configuration missing %s", strings.Join(missing, ", ")).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Port == "" {
		cfg.Port = "3306"
	}
	return nil
}

func mysqlDSN(cfg *MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}
