package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/draftkeeper/internal/flagx"
	"github.com/dmitrijs2005/draftkeeper/internal/timex"
)

// JsonConfig is the DTO read from the JSON config file. Interval fields use
// timex.Duration, so "30m" and integer nanoseconds are both accepted.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	MetricsAddr                 *string        `json:"metrics_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	LeaseTTL                    timex.Duration `json:"lease_ttl"`
	LeaseBackend                string         `json:"lease_backend"`
	RedisAddr                   string         `json:"redis_addr"`
	DraftBackend                string         `json:"draft_backend"`
	FirestoreProject            string         `json:"firestore_project"`
	FirestoreCredentialsFile    string         `json:"firestore_credentials_file"`
	ArchiveEnabled              *bool          `json:"archive_enabled"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	SweepSchedule               string         `json:"sweep_schedule"`
	RateLimit                   float64        `json:"rate_limit"`
	RateBurst                   int            `json:"rate_burst"`
	LogBackend                  string         `json:"log_backend"`
	Debug                       *bool          `json:"debug"`
}

// parseJson loads the file named by -c or -config over config. Keys absent
// from the file leave the current values alone. It panics when the file
// cannot be read or parsed.
func parseJson(config *Config) {

	// try flags
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

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overlay(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.LeaseBackend, c.LeaseBackend)
	overlay(&config.RedisAddr, c.RedisAddr)
	overlay(&config.DraftBackend, c.DraftBackend)
	overlay(&config.FirestoreProject, c.FirestoreProject)
	overlay(&config.FirestoreCredentialsFile, c.FirestoreCredentialsFile)
	overlay(&config.S3RootUser, c.S3RootUser)
	overlay(&config.S3RootPassword, c.S3RootPassword)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlay(&config.SweepSchedule, c.SweepSchedule)
	overlay(&config.LogBackend, c.LogBackend)
	overlay(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration.Duration)
	overlay(&config.LeaseTTL, c.LeaseTTL.Duration)
	overlay(&config.RateLimit, c.RateLimit)
	overlay(&config.RateBurst, c.RateBurst)

	if c.MetricsAddr != nil {
		config.MetricsAddr = *c.MetricsAddr
	}
	if c.ArchiveEnabled != nil {
		config.ArchiveEnabled = *c.ArchiveEnabled
	}
	if c.Debug != nil {
		config.Debug = *c.Debug
	}
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
