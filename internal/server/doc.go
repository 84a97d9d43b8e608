// Package server implements the pizza order-intake service.
//
// Owns:
//   - The accept loop (Server) and the per-connection actor (conn)
//   - Request parsing, routing and the closed set of responses
//   - Handlers for /pubkey, /order, /receipt and static files
//   - SQLite persistence (Store, migrations)
//
// Does not own:
//   - Token signing and verification (package auth)
//   - Command line parsing and key loading (package shared)
//
// Invariants:
//   - One request and at most one response per connection, then close
//   - A connection that outlives its deadline is closed without a response
//   - Receipts are only served for a token whose audience is the order id
package server
