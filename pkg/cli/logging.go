package cli

import (
	"log/slog"
	"os"
)

// SetupLogging installs the process-wide slog handler. Verbose mode
// lowers the level to debug so wire-level traffic from the realtime
// and vendor clients shows up; otherwise only warnings and errors
// reach the terminal.
func SetupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
