// Package auth authenticates incoming bridge connections.
//
// It extracts bearer tokens and application keys from the upgrade request,
// resolves them against a user directory (or validates session JWTs locally),
// enforces the origin allow-list, and produces the immutable Identity that
// is attached to a connection for its lifetime.
package auth
