package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ecoledger/carbon-engine/internal/datastore"
	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
)

func openSQLite(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := datastore.Open(datastore.Config{
		Type:       datastore.TypeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), name),
	}, logger.NewSlogLogger(nil, logger.LogLevelError, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })
	return db
}

func seedSource(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repository.NewActivityRepository(db).Save(ctx,
		&model.ActivityEntry{ID: "a-1", TenantID: "acme", Description: "diesel", Quantity: 10, Unit: "L", Status: model.StatusMatched},
		&model.ActivityEntry{ID: "a-2", TenantID: "acme", Description: "power", Quantity: 5, Unit: "kWh", Status: model.StatusFailed},
	))

	calcs := repository.NewCalculationRepository(db)
	_, err := calcs.Insert(ctx, &model.CalculationResult{
		EntryID: "a-1", TenantID: "acme",
		TotalEmissions: decimal.RequireFromString("26.8"), EmissionsUnit: model.EmissionsUnit,
		Method: model.MethodRetrieval, Confidence: 0.9,
		FactorValue: decimal.RequireFromString("2.68"), FactorUnit: "kg CO2e/L",
	})
	require.NoError(t, err)
	_, err = calcs.Insert(ctx, model.Failed(&model.ActivityEntry{ID: "a-2", TenantID: "acme"},
		model.ErrorKindBothMethodsFailed, "no factor", model.FallbackNone))
	require.NoError(t, err)
}

func TestMigratorCopiesAndIsIdempotent(t *testing.T) {
	source := openSQLite(t, "source.db")
	target := openSQLite(t, "target.db")
	seedSource(t, source)

	var out bytes.Buffer
	m := newMigrator(&Config{BatchSize: 1}, source, target, &out)
	ctx := context.Background()

	stats, err := m.Run(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Tables, 3)
	assert.Equal(t, "activity_entries", stats.Tables[1].Name)
	assert.EqualValues(t, 2, stats.Tables[1].Migrated)
	assert.EqualValues(t, 2, stats.Tables[2].Migrated)
	require.NoError(t, NewVerifier(source, target, &out).Verify())

	total, err := repository.NewCalculationRepository(target).SumByCompany(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("26.8").Equal(total), "total %s", total)

	// A second run finds every row already present.
	stats, err = m.Run(ctx)
	require.NoError(t, err)
	for _, ts := range stats.Tables {
		assert.Zero(t, ts.Migrated, ts.Name)
		assert.Zero(t, ts.Errors, ts.Name)
	}

	stats.Print(&out)
	assert.Contains(t, out.String(), "TOTAL")
}

func TestMigratorClean(t *testing.T) {
	source := openSQLite(t, "source.db")
	target := openSQLite(t, "target.db")
	seedSource(t, source)
	ctx := context.Background()

	var out bytes.Buffer
	_, err := newMigrator(&Config{BatchSize: 100}, source, target, &out).Run(ctx)
	require.NoError(t, err)

	stats, err := newMigrator(&Config{BatchSize: 100, Clean: true}, source, target, &out).Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Tables[2].Migrated, "cleaned rows are copied again")
}

func TestVerifierDetectsMissingRows(t *testing.T) {
	source := openSQLite(t, "source.db")
	target := openSQLite(t, "target.db")
	seedSource(t, source)

	err := NewVerifier(source, target, &bytes.Buffer{}).Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activity_entries")
}

func TestConfigLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "carbon.db")
	require.NoError(t, os.WriteFile(dbPath, nil, 0o600))

	valid := func() Config {
		return Config{
			SQLitePath: dbPath,
			MySQL:      datastore.MySQLConfig{Host: "db", Port: "3306", Username: "carbon", Password: "secret", Database: "carbon"},
			BatchSize:  1000,
		}
	}

	c := valid()
	require.NoError(t, c.Load())
	assert.Equal(t, "carbon:****@tcp(db:3306)/carbon", c.SanitizedTarget())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing sqlite file", func(c *Config) { c.SQLitePath = filepath.Join(t.TempDir(), "nope.db") }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"batch too large", func(c *Config) { c.BatchSize = maxBatchSize + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Load())
		})
	}
}
