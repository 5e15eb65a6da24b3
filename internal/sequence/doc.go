// Package sequence computes the sequence number, display text and order key
// of a new ticket.
//
// The engine is pure: it is handed every ticket already issued for the
// (queue, day) pair and the current settings, and returns an Allocation.
// Callers serialize allocations per queue and persist the result; the
// engine holds no state between calls.
//
// Normal tickets take max(sequence)+1. Priority tickets are placed by one of
// two variants:
//
//   - Standard: a priority ticket may jump at most K normal tickets
//     (DisplacementLimit), anchored on the ticket being served or on the last
//     priority ticket.
//   - ExamVisit: candidate slots are anchor + K*i + i for i = 1, 2, …; the
//     first free slot past the ticket being served (or the last finished one)
//     wins.
//
// The placement result is a slot. A free slot becomes the ticket's sequence;
// an occupied one is recorded in Previous and the ticket takes the next
// sequence instead, so sequences stay unique per (queue, day).
package sequence
