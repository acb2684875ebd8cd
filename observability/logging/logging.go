package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup configures the standard library logger to emit structured JSON on
// stdout and returns the slog.Logger services should pass to their components.
// Every line carries the service name and, when provided, the environment.
func Setup(service, env string) *slog.Logger {
	return SetupLevel(service, env, slog.LevelInfo)
}

// SetupLevel is Setup with an explicit minimum level.
func SetupLevel(service, env string, level slog.Level) *slog.Logger {
	base, handler, attrs := build(os.Stdout, service, env, level)
	slog.SetDefault(base)

	// Bridge the standard library logger so third-party packages keep working.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

// New builds a logger with the same shape as Setup without touching global
// state.
func New(w io.Writer, service, env string, level slog.Level) *slog.Logger {
	logger, _, _ := build(w, service, env, level)
	return logger
}

// ParseLevel maps debug, info, warn and error onto slog levels, defaulting to
// info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

func build(w io.Writer, service, env string, level slog.Level) (*slog.Logger, slog.Handler, []slog.Attr) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return slog.New(handler).With(args...), handler, attrs
}
