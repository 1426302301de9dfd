// Package storage persists the credential the auth client works with.
//
// Adapter is the whole contract: Get, Set and Remove a TokenRecord by key.
// Three backends implement it:
//
//   - MemoryStore: process memory, for tests and short-lived tools
//   - FileStore: one 0600 JSON file per key under ~/.config/tokenwarden/tokens
//   - SQLiteStore: a single table in a SQLite database (modernc.org/sqlite)
//
// Adapters never decide whether a token has expired; the auth client does,
// because a refresh and a plain read tolerate different staleness.
//
// Cache is a small TTL cache with an injectable clock. CachedAdapter uses it
// as a read-through layer in front of the file and SQLite backends.
package storage
