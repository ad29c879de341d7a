// Package migrate applies database schema and data changes exactly once, in
// a fixed order, before the server begins handling requests. Multiple
// replicas may start concurrently against the same database; a session-scoped
// Postgres advisory lock guarantees that only one of them applies pending
// migrations while the rest wait and then observe an up-to-date ledger.
package migrate
