package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSQLiteDefaults(t *testing.T) {
	cfg := Config{Driver: " SQLite ", MaxConnections: 8}
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, defaultSQLitePath, cfg.Path)
	assert.Equal(t, 1, cfg.MaxConnections)
	assert.Equal(t, "sqlite3://"+defaultSQLitePath, cfg.MigrateURL())
	assert.Contains(t, cfg.DSN(), "_busy_timeout=5000")
}

func TestNormalizePostgres(t *testing.T) {
	cfg := Config{Driver: "pg", Host: "db", Name: "counters", User: "bot", Password: "p@ss"}
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, "db:5432/counters", cfg.Target())
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/counters?sslmode=disable", cfg.MigrateURL())
	assert.Contains(t, cfg.DSN(), "dbname=counters")
}

func TestNormalizeErrors(t *testing.T) {
	assert.Error(t, (&Config{Driver: "postgres"}).Normalize())
	assert.Error(t, (&Config{Driver: "mysql"}).Normalize())

	var nilCfg *Config
	assert.Error(t, nilCfg.Normalize())
}

func TestWaitForSkipsSQLite(t *testing.T) {
	assert.NoError(t, WaitFor(Config{Driver: DriverSQLite}, 0))
}
