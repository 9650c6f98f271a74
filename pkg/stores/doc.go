// Package stores provides the SQLite persistence layer for bootcoord.
// It holds persisted preferences and the lifecycle journal, with schema
// migrations embedded in the binary.
package stores
