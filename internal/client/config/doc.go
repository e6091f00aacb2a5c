// Package config loads runtime configuration for the draftkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
// Intervals are timex.Duration values, so "3s" and integer nanoseconds both
// work:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "data_dir": "/home/me/.draftkeeper",
//	  "storage_backend": "pebble",
//	  "user_id": "alice",
//	  "save_debounce": "500ms",
//	  "sync_delay": "2s",
//	  "lease_renew_interval": "5m",
//	  "log_file": "/tmp/draftkeeper.log"
//	}
//
// The device id is normally left empty; the CLI generates one on first start
// and keeps it in the local store.
package config
