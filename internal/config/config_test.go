package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o644))
	t.Chdir(dir)
}

func TestLoad(t *testing.T) {
	writeEnv(t, `DB_HOST=localhost
DB_USER=portal
DB_PASSWORD=secret
DB_NAME=portal
DB_PORT=5432
SERVER_PORT=8080
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "host=localhost user=portal password=secret dbname=portal port=5432 sslmode=disable", cfg.DSN())
	assert.Equal(t, "8080", cfg.ServerPort)

	// Defaults.
	assert.Equal(t, "./data/organized", cfg.OrganizedDir)
	assert.Equal(t, 5*time.Second, cfg.ReconcileDelay())
	assert.Equal(t, 24*time.Hour, cfg.LedgerMaxAge())
}

func TestLoadMissingRequired(t *testing.T) {
	writeEnv(t, `DB_HOST=localhost
DB_USER=portal
DB_PASSWORD=secret
DB_NAME=portal
DB_PORT=5432
`)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
}
