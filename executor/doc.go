// Package executor defines the boundary to the backend command engine and
// the bounded pool the bridge dispatches through, so a slow backend call
// never stalls a connection's message pump.
package executor
