package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, 5*time.Minute, cfg.Session.SafetyMargin)
	require.Equal(t, 2, cfg.Session.RefreshAttempts)
	require.Equal(t, "documents.db", cfg.Storage.DocumentsDB)
	require.NotEmpty(t, cfg.Storage.DataDir)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MEDILINK_ENVIRONMENT", "production")
	t.Setenv("MEDILINK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("api:\n  baseurl: https://clinic.example.com/api\n  timeout: 5s\nstorage:\n  datadir: /tmp/medidata\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://clinic.example.com/api", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.API.Timeout)
	require.Equal(t, filepath.Join("/tmp/medidata", "documents.db"), cfg.DocumentsPath())
}

func TestDocumentsPath(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{DataDir: "/data", DocumentsDB: "docs.db"}}
	require.Equal(t, "/data/docs.db", cfg.DocumentsPath())

	cfg.Storage.DocumentsDB = "/abs/docs.db"
	require.Equal(t, "/abs/docs.db", cfg.DocumentsPath())

	cfg.Storage.DocumentsDB = ""
	require.Equal(t, "", cfg.DocumentsPath())
}
