package logging

// #region imports
import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// #endregion

// #region init

// service tags every record so sidecar and CLI logs can be told apart.
const service = "valtric"

// Init installs the process logger and returns it. Records are written to w,
// or stderr when w is nil, as logfmt text unless format is "json".
func Init(level slog.Level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(h).With("service", service)
	slog.SetDefault(logger)
	return logger
}

// New scopes the process logger to one pipeline stage or subcommand.
func New(component string) *slog.Logger {
	return slog.With("component", component)
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// #endregion

// #region timing

// MillisSince returns elapsed wall time in milliseconds, rounded to 0.01.
func MillisSince(start time.Time) float64 {
	ms := float64(time.Since(start).Microseconds()) / 1000
	return float64(int64(ms*100+0.5)) / 100
}

// Boundary logs one stage boundary with its duration. Extra attributes follow
// the usual slog key/value form.
func Boundary(logger *slog.Logger, stage string, start time.Time, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := append([]any{"stage", stage, "duration_ms", MillisSince(start)}, args...)
	logger.Info("boundary", attrs...)
}

// #endregion
