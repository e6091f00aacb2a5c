package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/flagx"
	"github.com/dmitrijs2005/draftkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Fields left
// out of the file keep the values already present in Config.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	DataDir             string         `json:"data_dir"`
	StorageBackend      string         `json:"storage_backend"`
	UserID              string         `json:"user_id"`
	DeviceID            string         `json:"device_id"`
	SaveDebounce        timex.Duration `json:"save_debounce"`
	SyncDelay           timex.Duration `json:"sync_delay"`
	LeaseRenewInterval  timex.Duration `json:"lease_renew_interval"`
	LogFile             string         `json:"log_file"`
	Debug               *bool          `json:"debug"`
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.StorageBackend, jc.StorageBackend)
	setString(&cfg.UserID, jc.UserID)
	setString(&cfg.DeviceID, jc.DeviceID)
	setString(&cfg.LogFile, jc.LogFile)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.SaveDebounce, jc.SaveDebounce)
	setDuration(&cfg.SyncDelay, jc.SyncDelay)
	setDuration(&cfg.LeaseRenewInterval, jc.LeaseRenewInterval)
	if jc.Debug != nil {
		cfg.Debug = *jc.Debug
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
