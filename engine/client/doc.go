// Package client implements ClientEngine, the sans-I/O speculative half of
// the sync protocol. It maintains two Stores: confirmed (mirrors the
// server through applied broadcasts) and speculative (confirmed plus
// replay of everything still in flight), and a FIFO queue of intents
// awaiting acknowledgement.
//
//	┌────────────────────── CLIENT ENGINE ───────────────────────┐
//	│                                                               │
//	│   Bootstrap(welcome) ── confirmed := welcome.snapshot        │
//	│                         speculative := confirmed             │
//	│                                                               │
//	│   Intend(intent) ── apply to speculative only                │
//	│                     queue (seq, intent); return seq          │
//	│                                                               │
//	│   Receive(broadcast)                                         │
//	│     1. version' > version, else discard as stale             │
//	│     2. apply mutations to confirmed                           │
//	│     3. ack matches queue head? pop it                         │
//	│     4. version := version'                                    │
//	│     5. speculative := fresh copy of confirmed, replay queue   │
//	│        (intents that no longer apply are dropped + reported) │
//	│                                                               │
//	│   Receive(rejection) ── drop matching intent, replay queue    │
//	└───────────────────────────────────────────────────────────────┘
//
// Step 1 has one exception: a broadcast at the current version whose ack
// names this client's queue head (the server's ack for an application-level
// no-op) pops that intent and replays the rest of the queue.
//
// Recomputing speculative from confirmed is cheap: confirmed's Snapshot
// and NewFromSnapshot share the underlying arena, so "recompute" never
// copies tree data, only re-runs ApplyFn against the queued intents.
package client
