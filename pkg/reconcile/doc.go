// Package reconcile keeps the local model in step with the device.
//
// A Reconciler owns one session's model.Registry. Inbound frames are
// decoded and applied by position: the protocol re-sends the whole
// configuration after every change, so the record at index i always
// describes the entity at ordinal i. Local edits arrive as Request*
// intents; each one clamps its input, mutates the model optimistically
// (marking the entity Pending), and sends the matching command
// immediately. The next snapshot confirms or corrects the edit.
//
// Deletion is two-phase. A delete request marks the entity PendingDelete,
// sends the command and tells the Renderer to remove it; the entity leaves
// the model only when the Renderer calls AcknowledgeRemoval.
//
// # Concurrency
//
// A Reconciler is not safe for concurrent use. All calls, including the
// colour throttle callbacks delivered through Config.Scheduler, must come
// from the same goroutine (see package session).
package reconcile
