// Package common contains shared constants and sentinel errors used across
// the draftkeeper client and server.
package common

const (
	// AccessTokenHeaderName is the gRPC metadata key carrying the session token.
	AccessTokenHeaderName = "access_token"

	// DeviceIDHeaderName is informational metadata attached by the client so
	// server logs can tell devices of one user apart before a session exists.
	DeviceIDHeaderName = "device_id"
)
