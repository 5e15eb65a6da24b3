// Package store provides durable, transactional storage for tickets and the
// facility data they reference (queues, counters, screens, kiosks and
// parameters).
//
// The store exposes a small set of named, parameterized queries instead of a
// predicate builder. The same queries are available on *Store and on *Tx so a
// workflow operation can run entirely inside one transaction.
//
// # Invariants
//
//   - UNIQUE(queue_id, display_text, patient_code, create_date) on tickets.
//     A missing patient code is stored as the empty string so the constraint
//     applies.
//   - Tickets are never deleted; UpdateTicket only touches state, counter and
//     process/finish times.
//   - Ticket listings are ordered deterministically: waiting lists by
//     sort_order then sequence, day listings by queue then creation.
//
// # Database Configuration
//
// SQLite (default):
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: a transaction holds the only connection, so code
//     running inside WithTx must use the *Tx it was given
//
// MySQL (driver "mysql") uses a pooled connection and the same queries;
// dialect differences are limited to schema text, upserts and error codes.
//
// Driver errors are classified into model error kinds: unique violations
// become Conflict, busy/locked/bad-connection errors become Transient.
package store
