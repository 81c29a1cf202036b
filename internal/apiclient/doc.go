// Package apiclient is the HTTP client for the daemon API used by the CLI.
//
// It wraps every endpoint the daemon serves with typed request/response
// methods over the shared api DTOs, attaches the configured bearer token,
// and classifies connection failures so callers can fall back to direct
// queue store access when the daemon is offline.
//
// Reuse these methods when adding new endpoints so auth and error handling
// stay consistent across command implementations.
package apiclient
