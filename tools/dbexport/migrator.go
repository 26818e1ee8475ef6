package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecoledger/carbon-engine/internal/datastore"
	"github.com/ecoledger/carbon-engine/internal/datastore/entities"
	"github.com/ecoledger/carbon-engine/internal/logger"
)

// Migrator copies the store from a source database to a target database.
type Migrator struct {
	cfg      Config
	sourceDB *gorm.DB
	targetDB *gorm.DB
	out      io.Writer
	owned    bool
}

// MigrationStats tracks migration statistics.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table migration statistics.
type TableStats struct {
	Name     string
	Migrated int64
	Skipped  int64
	Errors   int64
	Duration time.Duration
}

// Print writes the migration summary.
func (s *MigrationStats) Print(w io.Writer) {
	rule := strings.Repeat("-", 70)
	fmt.Fprintln(w, "\n=== Export Summary ===")
	fmt.Fprintf(w, "Duration: %s\n\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))

	fmt.Fprintf(w, "%-25s %10s %10s %10s %12s\n", "Table", "Migrated", "Skipped", "Errors", "Duration")
	fmt.Fprintln(w, rule)

	var migrated, skipped, errs int64
	for _, t := range s.Tables {
		fmt.Fprintf(w, "%-25s %10d %10d %10d %12s\n",
			t.Name, t.Migrated, t.Skipped, t.Errors, t.Duration.Round(time.Millisecond))
		migrated += t.Migrated
		skipped += t.Skipped
		errs += t.Errors
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-25s %10d %10d %10d\n", "TOTAL", migrated, skipped, errs)
}

// NewMigrator opens both databases. Opening runs the schema migration, so the
// target tables exist before any rows are copied.
func NewMigrator(cfg *Config, out io.Writer) (*Migrator, error) {
	level := logger.LogLevelWarn
	if cfg.Verbose {
		level = logger.LogLevelDebug
	}
	log := logger.NewSlogLogger(nil, level, nil)

	sourceDB, err := datastore.Open(datastore.Config{Type: datastore.TypeSQLite, SQLitePath: cfg.SQLitePath}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	targetDB, err := datastore.Open(datastore.Config{Type: datastore.TypeMySQL, MySQL: cfg.MySQL}, log)
	if err != nil {
		_ = datastore.Close(sourceDB)
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	fmt.Fprintln(out, "Database connections established")
	m := newMigrator(cfg, sourceDB, targetDB, out)
	m.owned = true
	return m, nil
}

func newMigrator(cfg *Config, sourceDB, targetDB *gorm.DB, out io.Writer) *Migrator {
	return &Migrator{cfg: *cfg, sourceDB: sourceDB, targetDB: targetDB, out: out}
}

// Close closes both databases if the migrator opened them.
func (m *Migrator) Close() {
	if !m.owned {
		return
	}
	_ = datastore.Close(m.sourceDB)
	_ = datastore.Close(m.targetDB)
}

// tables lists the store in copy order; calculations reference entries and factors.
var tables = []string{"emission_factors", "activity_entries", "calculations"}

// Run copies every table.
func (m *Migrator) Run(ctx context.Context) (*MigrationStats, error) {
	stats := &MigrationStats{StartTime: time.Now()}

	if m.cfg.Clean {
		if err := m.cleanTables(ctx); err != nil {
			return nil, fmt.Errorf("failed to clean tables: %w", err)
		}
	}

	steps := []func(context.Context) (*TableStats, error){
		func(ctx context.Context) (*TableStats, error) {
			return migrateTable[entities.EmissionFactor](ctx, m, tables[0])
		},
		func(ctx context.Context) (*TableStats, error) {
			return migrateTable[entities.ActivityEntry](ctx, m, tables[1])
		},
		func(ctx context.Context) (*TableStats, error) {
			return migrateTable[entities.Calculation](ctx, m, tables[2])
		},
	}
	for i, step := range steps {
		tableStats, err := step(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to migrate %s: %w", tables[i], err)
		}
		stats.Tables = append(stats.Tables, *tableStats)
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// cleanTables deletes target rows in reverse copy order.
func (m *Migrator) cleanTables(ctx context.Context) error {
	fmt.Fprintln(m.out, "Cleaning target tables...")
	for i := len(tables) - 1; i >= 0; i-- {
		if err := m.targetDB.WithContext(ctx).Exec("DELETE FROM " + tables[i]).Error; err != nil {
			return fmt.Errorf("%s: %w", tables[i], err)
		}
		if m.cfg.Verbose {
			fmt.Fprintf(m.out, "  Cleaned: %s\n", tables[i])
		}
	}
	return nil
}

// migrateTable copies one table in batches. Rows whose key already exists in
// the target are skipped; a failed batch is counted and the copy continues.
func migrateTable[T any](ctx context.Context, m *Migrator, tableName string) (*TableStats, error) {
	start := time.Now()
	stats := &TableStats{Name: tableName}
	fmt.Fprintf(m.out, "Copying %s...\n", tableName)

	var sourceCount int64
	if err := m.sourceDB.WithContext(ctx).Model(new(T)).Count(&sourceCount).Error; err != nil {
		return stats, fmt.Errorf("failed to count source records: %w", err)
	}
	if sourceCount == 0 {
		fmt.Fprintf(m.out, "  %s: no records to copy\n", tableName)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var processed int64
	batchNum := 0
	err := m.sourceDB.WithContext(ctx).Model(new(T)).FindInBatches(new([]T), m.cfg.BatchSize, func(tx *gorm.DB, _ int) error {
		batchNum++
		records := tx.Statement.Dest.(*[]T)

		result := m.targetDB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(records)
		if result.Error != nil {
			stats.Errors += int64(len(*records))
			fmt.Fprintf(m.out, "  Batch %d error: %v\n", batchNum, result.Error)
			return nil //nolint:nilerr // keep copying the remaining batches
		}

		stats.Migrated += result.RowsAffected
		stats.Skipped += int64(len(*records)) - result.RowsAffected
		processed += int64(len(*records))

		if m.cfg.Verbose || batchNum%10 == 0 {
			fmt.Fprintf(m.out, "  %s: %d/%d (%.1f%%)\n", tableName, processed, sourceCount,
				float64(processed)/float64(sourceCount)*100)
		}
		return nil
	}).Error
	if err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	fmt.Fprintf(m.out, "  %s: done (%d copied, %d skipped, %d errors) in %s\n",
		tableName, stats.Migrated, stats.Skipped, stats.Errors, stats.Duration.Round(time.Millisecond))
	return stats, nil
}
