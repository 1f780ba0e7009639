// Package catalog defines the model-catalog boundary the bridge consumes
// for discovery and introspection.
//
// A Catalog answers two read-only questions: which models exist (with the
// operations each supports), and what a given model's schema looks like.
// Both calls are best-effort from the bridge's point of view: a failing or
// absent catalog degrades discovery, it never fails a connection.
//
// The package ships a Static implementation backed by an in-memory model
// list, suitable for tests and for servers whose catalog is known at
// startup. Production deployments typically implement Catalog against
// their own metadata store.
package catalog
