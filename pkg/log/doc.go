/*
Package log provides structured logging for Aper using zerolog.

The log package wraps zerolog to provide JSON or console-formatted logging
with context loggers scoped to a sync session, a store version, or a named
component. All logs include timestamps and support filtering by severity
for production debugging of a running ServerEngine or ClientEngine.

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Context Loggers                   │          │
	│  │  - WithComponent("server-engine")           │          │
	│  │  - WithSessionID("client-abc123")            │          │
	│  │  - WithVersion(42)                          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  {"level":"info","component":"server-engine",│         │
	│  │   "version":42,"message":"broadcast sent"}  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	engineLog := log.WithComponent("server-engine")
	engineLog.Info().Uint64("version", 42).Msg("broadcast sent")

	sessLog := log.WithSessionID("client-abc123")
	sessLog.Warn().Msg("ack did not match queue head")

Don't log intent or store values directly - they are opaque application
bytes and may be arbitrarily large; log paths, versions, and sizes instead.
*/
package log
