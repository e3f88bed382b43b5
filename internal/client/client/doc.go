// Package client talks to the SportMatch HTTP API.
//
// # Overview
//
// The package provides:
//  1. Gateway, which sends every request with the current access token
//     and renews the credential when the server answers 401. Concurrent
//     callers rejected under the same credential share a single renewal,
//     because refresh tokens are single-use.
//  2. API, a typed implementation of the Client interface (auth, sports,
//     users, matching, chat) on top of any Doer.
//  3. Local persistence bootstrap (InitDatabase) for the CLI.
//
// # Error Handling
//
// Failures are reported as ErrUnauthorized, ErrNetwork, *ServerError
// (matches ErrServer) or *ValidationError (matches ErrValidation). Only the
// 401 -> renew -> retry path is recovered here; everything else is the
// caller's to retry.
//
// Renewal failure and a 401 after the retry both clear the session store
// and publish events.SessionEnded once per episode.
package client
