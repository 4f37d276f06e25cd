// Package log is a small structured logging layer over [log/slog].
//
// A [Logger] is built with [Make] and functional options:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatJSON),
//		log.WithTimeLayout("RFC3339Nano"))
//	logger.Info("parsed", slog.Int("nodes", n))
//
// Levels are trace, debug, info, warn and error; trace sits below slog's
// debug level and prints as TRACE. Text output goes through a pretty
// handler by default, colored when the destination is a terminal.
//
// The package also keeps a default logger, reconfigured with [Config] and
// used by the package-level functions such as [Info] and [DebugContext].
// Library packages in this module accept a *slog.Logger; pass
// [Logger.Slog] to them.
package log
