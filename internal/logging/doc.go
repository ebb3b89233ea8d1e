// Package logging provides per-module structured logging for airradio.
//
// Every module gets its own *slog.Logger carrying a "module" attribute and a
// dedicated slog.LevelVar, so levels can be changed at runtime from the API:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"supervisor": "debug",
//			"stream":     "warn",
//		},
//	})
//
//	logger := logging.GetLogger("supervisor").With("target", id)
//	logger.Info("Session started", "pid", pid)
//
// Records are written to stdout (text or JSON) when stdout is attached, to the
// systemd journal when journald is reachable, and always to an in-memory ring
// of recent entries served by GET /api/logs.
//
// Journal filtering:
//
//	journalctl -t airradio MODULE=supervisor
//	journalctl -t airradio TARGET=AA:BB:CC:DD:EE:FF -p warning
package logging
