// Package display builds read-only board snapshots for waiting-room screens
// and per-queue statistics.
//
// Boards are served from the queue cache and never touch the store.
// Statistics read the store so that they include cancelled tickets.
package display
