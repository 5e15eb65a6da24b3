// Package cache holds an in-process snapshot of today's queues, counters,
// screens, kiosks, parameters and tickets for low-latency reads.
//
// # Consistency model
//
// The cache publishes an immutable snapshot through an atomic pointer.
// Facility maps (queues, counters, screens, kiosks, parameters) are never
// mutated after publication; changing one publishes a copy. Tickets live in a
// per-queue index where each queue's list has its own lock, so mutations on
// one queue never block readers of another.
//
// Reload is single-flight. The next snapshot is built off to the side while
// readers keep using the current one, then swapped in with one pointer store.
// Ticket and parameter mutations that happen while a reload is running are
// journaled and replayed onto the new snapshot before it is published, so no
// committed change is lost by the swap. A failed reload leaves the current
// snapshot untouched.
//
// Only tickets whose create date equals the snapshot day are cached.
// Cancelled tickets are never cached.
package cache
