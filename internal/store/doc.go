// Package store keeps the session journal in SQLite.
//
// The journal records every packet the dispatcher accepted, remote or
// local, together with the transport metadata that is not part of the
// payload (sender ID and receipt time). Re-applying the rows in seq order
// rebuilds the transcript exactly, which makes a journal a reproducible bug
// report for an ordering problem seen live.
//
// The journal covers one session. It is not a history store: a new session
// starts a new journal.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - a single connection, so ":memory:" journals work
//
// Writes are idempotent: rows are keyed by seq and a second write of the
// same seq is ignored.
package store
