package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/callbell/pkg/callbell"
)

// clearEnv blanks every variable Load consults so the test controls the
// full precedence chain.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AZURE_TENANT_ID", "AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET",
		"SQL_SERVER", "SQL_DATABASE", "APP_NAME", "LOCAL_DEV", "DEV_USER_EMAIL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_ProjectFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(
		"azure_tenant_id: tenant-1\n"+
			"azure_client_id: client-1\n"+
			"sql_server: myserver.database.windows.net\n"+
			"sql_database: care_reporting\n"), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", cfg.AzureTenantID)
	assert.Equal(t, "client-1", cfg.AzureClientID)
	assert.Equal(t, "myserver.database.windows.net", cfg.SQLServer)
	assert.Equal(t, "care_reporting", cfg.SQLDatabase)
	assert.Equal(t, DefaultAppName, cfg.AppName, "missing app name falls back to the default")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(
		"sql_database: from_file\n"), 0o600))

	t.Setenv("SQL_DATABASE", "from_env")
	t.Setenv("AZURE_CLIENT_SECRET", "env-secret")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.SQLDatabase)
	assert.Equal(t, "env-secret", cfg.AzureClientSecret, "the secret only ever comes from the environment")
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultAppName, cfg.AppName)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{not yaml"), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_LocalDevFlag(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCAL_DEV", "true")
	t.Setenv("DEV_USER_EMAIL", "dev@example.org")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.LocalDev)
	assert.Equal(t, "dev@example.org", cfg.DevUserEmail)
}

func TestValidate_NamesEveryMissingVariable(t *testing.T) {
	cfg := &Config{SQLServer: "host"}
	err := cfg.Validate()
	require.Error(t, err)

	assert.ErrorIs(t, err, callbell.ErrInvalidConfig)
	for _, name := range []string{"AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET", "AZURE_TENANT_ID", "SQL_DATABASE"} {
		assert.Contains(t, err.Error(), name)
	}
	assert.NotContains(t, err.Error(), "SQL_SERVER")
}

func TestValidate_Complete(t *testing.T) {
	cfg := &Config{
		AzureTenantID:     "t",
		AzureClientID:     "c",
		AzureClientSecret: "s",
		SQLServer:         "host",
		SQLDatabase:       "db",
	}
	assert.NoError(t, cfg.Validate())
}

func TestSave_OmitsSecret(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		AzureTenantID:     "tenant-1",
		AzureClientID:     "client-1",
		AzureClientSecret: "super-secret",
		SQLServer:         "host",
		SQLDatabase:       "db",
	}

	require.NoError(t, Save(dir, cfg))

	raw, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret")
	assert.Contains(t, string(raw), "tenant-1")

	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	want := &Config{
		AzureTenantID: "tenant-1",
		AzureClientID: "client-1",
		SQLServer:     "host",
		SQLDatabase:   "db",
		AppName:       "custom-app",
	}
	require.NoError(t, Save(dir, want))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, want.AzureTenantID, got.AzureTenantID)
	assert.Equal(t, want.SQLDatabase, got.SQLDatabase)
	assert.Equal(t, "custom-app", got.AppName)
}

func TestLoadFile_NotFoundSentinel(t *testing.T) {
	_, err := loadFile(t.TempDir())
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}
