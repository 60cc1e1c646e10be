// Package bridge ships committed mutations from a host window's store to
// a guest window's store in real time.
//
// The host side walks idle → awaiting-guest → bridged, and falls back to
// idle when the guest window closes or the share is toggled off. While
// bridged, every store commit is serialized and enqueued in commit order;
// a forwarding loop drains the queue to the guest over a Channel. The
// first message after bridging (and after a pause lifts) is a bootstrap
// carrying the host's whole fact set; everything else is the per-commit
// change list. A guest is unbridged until Listen receives its bootstrap,
// and simply re-applies whatever arrives, in arrival order, with no
// validation: guest state is a causally consistent prefix of host state.
//
// Replication is one-directional. Nothing the guest does ships back; a
// guest window's own actions stay in its local store.
//
// Thread-safety model:
//   - Share and Close may be called from any goroutine; both are
//     serialized by the Bridge mutex and Close is idempotent.
//   - The commit subscriber only encodes and enqueues, so store commits
//     never block on the transport.
//   - Liveness polling runs on its own goroutine and tears the bridge
//     down from outside the store's notification path.
//
// CRITICAL: the subscriber must never commit to the store it observes;
// share-flag retraction on guest death happens on the poll goroutine.
package bridge
