package rox

import "log/slog"

// componentLogger tags every log line emitted by one of Core's owned
// components with its source, the same convention the teacher uses for
// the provider and the wrapped third-party SDK
// (`cfg.Logger.With("source", "split-provider")` /
// `cfg.Logger.With("source", "split-sdk")`).
func componentLogger(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("source", component)
}
