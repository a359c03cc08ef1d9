// Package audit records who changed what and when for memberships, roles and
// season registrations.
//
// Domain operations collect Events while their transaction runs and hand them
// to a Logger only after the commit succeeded, so a rolled back operation
// leaves no trail. Loggers:
//
//   - DBLogger persists to the audit_events table and answers Search queries
//     (the notification collaborator polls it for registration transitions).
//   - StructuredLogger writes events as JSON log lines.
//   - MultiLogger fans out to several loggers.
//   - Recorder keeps events in memory for tests.
//
// Audit failures never fail the operation that produced the event; emitters
// log the error and move on.
package audit
