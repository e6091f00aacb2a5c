// Package kv provides the device-local key/value persistence used by the
// draft store: a SQLite-backed repository (default) and a Pebble-backed one.
//
// Both implementations return (nil, nil) from Get for absent keys.
package kv
