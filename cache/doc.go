// Package cache provides the bridge's multi-context result cache.
//
// It holds a permanent schema cache and a TTL-bound query-result cache,
// derives isolation-safe keys from the request and the connection identity,
// and maintains per-user and per-application reverse indexes so bulk
// invalidation touches only the owner's entries.
package cache
