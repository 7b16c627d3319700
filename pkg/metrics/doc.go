/*
Package metrics exposes Prometheus instrumentation for a running
ServerEngine: store version, connected client count, submit outcomes,
broadcast fan-out latency, broadcast size, and retraction counts by
reason. Unlike a polling collector over a cluster manager, these metrics
are recorded inline by the host at the moment each engine operation
completes - Submit, Connect, and Receive are all synchronous, so there is
no background sampling loop to run.

	┌──────────────────── METRICS ───────────────────────┐
	│                                                       │
	│  ServerEngine.Submit ──► SubmitsTotal{outcome}       │
	│                      ──► BroadcastFanoutDuration     │
	│                      ──► StoreVersion.Set(v)         │
	│                      ──► BroadcastMutations.Set(n)   │
	│                                                       │
	│  transport accept/close ──► ConnectedClients.Inc/Dec │
	│                                                       │
	│  ClientEngine retraction ──► RetractionsTotal{reason}│
	│                                                       │
	│  Handler() ──► promhttp, scraped by Prometheus        │
	└───────────────────────────────────────────────────────┘
*/
package metrics
