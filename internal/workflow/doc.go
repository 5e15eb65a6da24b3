// Package workflow drives the ticket lifecycle: creation, assignment to a
// counter, state transitions, miss recovery and cross-queue moves.
//
// Every operation runs inside one store transaction. The cache is updated
// only after the transaction commits, so a failed operation never leaves a
// partial ticket in either place.
//
// State machine:
//
//	Unset(100) ─┐
//	            ├─> Wait(1) ──AssignNext──> Serving(0) ──> Done(2)
//	Missed(3) ──┘      ^                       │
//	   ^               └──────ClearMissed──────┤
//	   └───────────────────────────────────────┘
//
// Done is terminal: further UpdateState calls on a Done ticket succeed
// without effect. Cancelled(-1) and Removed(4) are reachable through
// UpdateState; cancelled tickets leave the cache.
//
// Concurrency: creations and moves into a queue are serialized by a
// per-queue lock and retried on uniqueness conflicts. AssignNext claims a
// ticket with a conditional update; a counter that loses the race re-queries.
package workflow
