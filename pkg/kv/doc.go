// Package kv provides the durable key-value storage used by the SDK for
// access keys, identity pointers and cached catalog snapshots.
//
// Three backends implement the Store interface:
//
//   - MemoryStore: process-local, for tests and throwaway clients.
//   - FileStore: a single JSON file with atomic replace semantics, the
//     default for CLI tools and desktop agents.
//   - RedisStore: prefix-namespaced keys on a shared Redis, for server-side
//     clients that outlive a single process.
//
// JSONStore layers typed JSON encoding on top of any Store and swallows
// storage failures with a logged warning, matching the rule that a broken
// local store must degrade gracefully rather than fail a purchase flow.
package kv
