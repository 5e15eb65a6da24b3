// Package model defines the data types shared by every QMS component.
//
// The types here carry no behaviour beyond validation and formatting:
//   - Ticket: one numbered queue item issued to a patient
//   - Queue, Counter, Screen: facility reference data, read-only to the core
//   - State: the ticket lifecycle (Wait, Serving, Done, Missed, Removed, Cancelled, Unset)
//   - Day and Clock: the facility-local calendar day and the source of "now"
//   - Error: typed error kinds shared by store, cache and workflow
//
// Entities reference each other by id only. A Ticket knows its QueueID, never
// the Queue itself; lookups go through the cache or the store.
package model
