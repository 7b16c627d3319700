// Package server implements ServerEngine, the sans-I/O authoritative half
// of the sync protocol. It owns a single Store and applies every intent
// through a user-supplied ApplyFn, advancing a monotonic version and
// producing the broadcast (or rejection) a transport fans out to clients.
//
//	┌────────────────── SERVER ENGINE ──────────────────┐
//	│                                                      │
//	│   Connect(id) ──────► Welcome{version, snapshot}    │
//	│                                                      │
//	│   Submit(id, seq, intent)                           │
//	│     1. decode intent (user decoder)                 │
//	│     2. snapshot S0                                   │
//	│     3. ApplyFn(store, intent, metadata)             │
//	│     4. error?  restore(S0) ──► Reject{App}          │
//	│     5. ok?     drain dirty ──► Broadcast{v+1, M, ack}│
//	│                 (or ack-only Broadcast if M empty)  │
//	└──────────────────────────────────────────────────────┘
//
// ServerEngine performs no network or disk I/O and holds no timers; the
// host is responsible for single-writer serialization and for
// fanning broadcasts out to every connected client in FIFO order.
package server
