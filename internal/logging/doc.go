// Package logging hands out per-module slog loggers whose levels can be
// tuned independently, e.g. to silence ffmpeg chatter while debugging the
// process supervisor.
//
// Initialize once at startup, then ask for a logger by module name:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		File:    "~/.local/state/fakecam/fakecam.log",
//		Modules: map[string]string{"process": "debug", "ffmpeg": "warn"},
//	})
//	logger := logging.GetLogger("devices")
//	logger.Info("Loading v4l2loopback", "video_nr", 10)
//
// Loggers obtained before Initialize keep working and pick up the
// configured level and outputs once it runs.
//
// Every record goes to stdout (unless it is /dev/null), to the systemd
// journal when its socket exists, to the optional log file, and to an
// in-memory ring buffer that backs the log stream API. Journal entries
// carry the attributes as fields:
//
//	journalctl -t fakecam MODULE=process NAME=video
//
// In the config file, level, format and file are global and every other
// key of the [logging] table is a module level:
//
//	[logging]
//	level = "info"
//	ffmpeg = "warn"
//	process = "debug"
package logging
