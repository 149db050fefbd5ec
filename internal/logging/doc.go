// Package logging provides structured logging with per-module levels
// that can change at runtime.
//
// Output goes to stdout (text or json), to the systemd journal when
// journald is present, and to an in-memory ring buffer served by the
// control API's /api/logs endpoint.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"signal": "debug",
//			"dma":    "warn",
//		},
//	})
//
// Then per module:
//
//	log := logging.GetLogger("signal")
//	log.Info("signal locked", "mode", "1920x1080p60")
//
// The daemon's verbose toggle is SetAllLevels("debug"); individual
// modules can be tuned with SetModuleLevel.
//
// With journald:
//
//	journalctl -t sc0710 -f
//	journalctl -t sc0710 MODULE=signal
package logging
