// Package logging provides slog loggers with per-module levels.
//
// Every module asks for its own logger once:
//
//	logger := logging.GetLogger("encoder")
//	logger.Debug("Frame written", "frame", n)
//
// Levels come from the [logging] table of framescale.toml or the
// --logging-* flags. A module level overrides the global one and both can be
// changed while a run is in progress with [SetLevels]:
//
//	[logging]
//	level = "info"
//	decoder = "debug"
//	ffmpeg = "error"
//
// Records go to stderr as text or JSON. When the process runs as a systemd
// unit and stderr is the journal stream, they are sent to the journal
// instead, with attributes as fields:
//
//	journalctl -t framescale MODULE=upscaler WORKER=1
//
// The newest records are also kept in a [History] that the control API
// serves at /api/logs. [OnEntry] forwards each of them as it is appended.
package logging
