package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/antonkovalev/storysync/internal/flagx"
	"github.com/antonkovalev/storysync/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files; after unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	MaxBatchSize          int            `json:"max_batch_size"`
	SyncCallTimeout       timex.Duration `json:"sync_call_timeout"`
	SyncInterval          timex.Duration `json:"sync_interval"`
	ConflictRetryInterval timex.Duration `json:"conflict_retry_interval"`
	DeviceStalenessWindow timex.Duration `json:"device_staleness_window"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config flags; when the
// flag is absent no JSON file is loaded. Zero values in the file leave the
// corresponding Config fields untouched.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setIfNotEmpty(&config.EndpointAddr, c.EndpointAddr)
	setIfNotEmpty(&config.DatabaseDSN, c.DatabaseDSN)
	setIfNotEmpty(&config.SecretKey, c.SecretKey)
	if c.MaxBatchSize > 0 {
		config.MaxBatchSize = c.MaxBatchSize
	}
	setDuration(&config.SyncCallTimeout, c.SyncCallTimeout)
	setDuration(&config.SyncInterval, c.SyncInterval)
	setDuration(&config.ConflictRetryInterval, c.ConflictRetryInterval)
	setDuration(&config.DeviceStalenessWindow, c.DeviceStalenessWindow)
	setIfNotEmpty(&config.S3RootUser, c.S3RootUser)
	setIfNotEmpty(&config.S3RootPassword, c.S3RootPassword)
	setIfNotEmpty(&config.S3Bucket, c.S3Bucket)
	setIfNotEmpty(&config.S3Region, c.S3Region)
	setIfNotEmpty(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
