// Package logging provides structured logging with per-module log levels.
//
// Every package asks for its own logger once:
//
//	logger := logging.GetLogger("pipeline")
//	logger.Info("Stage registered", "stage", "thresholder")
//
// Records go to stdout (text or json), to the systemd journal when one is
// reachable, and to an in-memory ring buffer that the control API serves
// at /api/logs.
//
// Levels are configured globally with per-module overrides:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	sink = "debug"
//	encoder = "warn"
//
// With journald the output can be filtered by module:
//
//	journalctl -t tracknode MODULE=pipeline
package logging
