// Package store holds the process-wide mapping from state path to value and
// the notification flow around it.
//
// Responsibilities:
//   - Get returns a deep copy of the value stored at a path, or reports it
//     absent.
//   - Change overwrites a path (last writer wins) and publishes a path-scoped
//     PathChange followed by a global RootChange.
//   - SubscribeToPath reference-counts observers per path; when the last one
//     is cancelled the entry is deleted. This is the only way state leaves the
//     store.
//   - SubscribeToAnyChange observes every write without owning any path.
//
// Data flow:
//
//	Change -> middleware chain -> commit -> bus(path) -> bus(root)
//
// Reentrancy:
//
//	A Change issued for a path while that same path is publishing is queued
//	and committed after the in-flight publish completes, in FIFO order. Its
//	listener errors are returned by the outer Change call. Writes to other
//	paths re-enter synchronously.
//
// Isolation:
//
//	Values are deep copied with snapshot.Clone on the way in, on the way out
//	of Get, and once per listener delivery, so neither callers nor listeners
//	can reach the backing map.
package store
