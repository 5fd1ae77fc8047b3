/*
Package log provides structured logging for stratum using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and helper
functions for the context fields the distributor cares about most:
component, bucket ID, node, and cluster-state version.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog instance, init via log.Init()    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("distributor")              │          │
	│  │  - WithBucket("0x14:1337")                  │          │
	│  │  - WithNode("storage", 3)                   │          │
	│  │  - WithClusterVersion(42)                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  {"level":"info","component":"checkers",    │          │
	│  │   "bucket_id":"0x14:1337","message":"..."}  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	checkerLog := log.WithComponent("checkers").
		With().Str("bucket_id", bucketID.String()).Logger()
	checkerLog.Info().Str("op", "MergeBucket").Msg("emitted maintenance operation")

Use the global Logger directly, or a component child logger, never both
interleaved for the same subsystem — pick one at construction time and
thread it through.

# Integration points

  - pkg/distributor: logs per-tick checker outcomes
  - pkg/merge: logs admission/reject/forward decisions
  - pkg/clusterctl: logs Raft node shutdown
*/
package log
