// Package client contains the client-side transport and local database
// bootstrap for draftkeeper.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) covering
//     the remote draft store: session, Ping, the lease operations, PushDraft,
//     FetchDraft and LogEvent.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, opens a session lazily, injects the access token via an
//     interceptor, re-opens the session when the token expires, and maps
//     gRPC status codes to sentinel errors.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations)
//     wiring an SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, common.ErrorNotFound,
// common.ErrRateLimited.
//
// GRPCClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
