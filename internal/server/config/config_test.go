package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 500, cfg.MaxBatchSize)
	assert.Equal(t, 30*time.Second, cfg.SyncCallTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.ConflictRetryInterval)
	assert.Equal(t, 24*time.Hour, cfg.DeviceStalenessWindow)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.NotEmpty(t, cfg.S3Bucket)
}

func TestParseJsonOverlay(t *testing.T) {
	content := `{
		"endpoint_addr": ":9090",
		"max_batch_size": 100,
		"sync_call_timeout": "10s",
		"device_staleness_window": "48h"
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"test", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, 100, cfg.MaxBatchSize)
	assert.Equal(t, 10*time.Second, cfg.SyncCallTimeout)
	assert.Equal(t, 48*time.Hour, cfg.DeviceStalenessWindow)

	// Values absent from the file keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.NotEmpty(t, cfg.DatabaseDSN)
}

func TestParseJsonAbsentFlagIsNoop(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"test"}

	cfg := &Config{}
	cfg.LoadDefaults()
	before := *cfg
	parseJson(cfg)

	assert.Equal(t, before, *cfg)
}

func TestParseEnvOverlay(t *testing.T) {
	t.Setenv("ENDPOINT_ADDR", ":7070")
	t.Setenv("MAX_BATCH_SIZE", "250")
	t.Setenv("SYNC_CALL_TIMEOUT", "15s")
	t.Setenv("SECRET_KEY", "env-secret")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":7070", cfg.EndpointAddr)
	assert.Equal(t, 250, cfg.MaxBatchSize)
	assert.Equal(t, 15*time.Second, cfg.SyncCallTimeout)
	assert.Equal(t, "env-secret", cfg.SecretKey)

	// Untouched vars keep defaults.
	assert.Equal(t, 24*time.Hour, cfg.DeviceStalenessWindow)
}

func TestParseFlagsOverlay(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"test", "-a", ":6060", "-m", "42", "-t", "20", "-w", "12"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":6060", cfg.EndpointAddr)
	assert.Equal(t, 42, cfg.MaxBatchSize)
	assert.Equal(t, 20*time.Second, cfg.SyncCallTimeout)
	assert.Equal(t, 12*time.Hour, cfg.DeviceStalenessWindow)
}
