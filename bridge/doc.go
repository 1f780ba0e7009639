// Package bridge implements the WebSocket bridge server: connection
// lifecycle, message decoding, cache-aware command dispatch, and
// best-effort broadcast.
//
// A Server owns the connection registry. Each accepted connection is
// authenticated before the upgrade completes, receives a connection_info
// hello payload, and then runs two goroutines: a read loop that decodes
// inbound messages and a write pump that serializes outbound frames.
// Command messages are queued per connection and dispatched in arrival
// order through a Dispatcher, which consults the cache before handing the
// command to the bounded executor pool. Administrative messages (schema
// fetch, cache clear, stats, TTL update) are handled inline by the read
// loop so a slow backend call never blocks cache administration.
//
// Broadcast is fire-and-forget: a peer whose send buffer is full is
// skipped and logged, never awaited. One connection's failure must not
// affect the rest.
package bridge
