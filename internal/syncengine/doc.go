// Package syncengine keeps a per-user aggregate in step with the remote store while
// letting every user action take effect locally first.
//
// # Flow
//
//	Record → Tracker.Append (pending) → Domain.Apply → Cache → Notify
//	       → push (async) → Domain.Push ─ ok ──→ MarkSynced → Refresh → Notify
//	                                   └ fail ─→ retry timer (fixed delay) → push
//
// Actions that are still pending after their retries wait for the next CatchUp pass,
// which re-pushes everything PendingOnly returns in recording order.
//
// # Components
//
//   - Tracker: durable list of PendingAction values in one local store slot
//   - Cache: last known aggregate, in a slot next to the tracker's
//   - Notifier: synchronous fan-out of aggregate snapshots to subscribers
//   - Engine: owns the above plus the retry timers for one owner and one Domain
//
// An Engine is created per user session and must be closed when the session ends;
// Close stops pending retry timers and waits for in-flight pushes.
//
// Pushes are idempotent by ActionID: the domain writes with the action id (or ids
// derived from the payload) as the remote primary key, and the remote store skips
// ids it already has.
package syncengine
