package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRateLimited     = errors.New("rate limited")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Lease and sync flow errors.
	ErrLeaseHeld    = errors.New("draft is locked by another device")
	ErrLeaseNotHeld = errors.New("lease is not held by caller")
	ErrOffline      = errors.New("offline")
	ErrNoConflict   = errors.New("no conflict to resolve")
)
