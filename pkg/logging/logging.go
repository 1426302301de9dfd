package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// LogLevel is a slog level restricted to the four levels the CLI exposes.
type LogLevel slog.Level

// Levels accepted by ParseLevel and InitForCLI.
const (
	LevelDebug = LogLevel(slog.LevelDebug)
	LevelInfo  = LogLevel(slog.LevelInfo)
	LevelWarn  = LogLevel(slog.LevelWarn)
	LevelError = LogLevel(slog.LevelError)
)

// String returns the upper-case slog name, e.g. "WARN".
func (l LogLevel) String() string { return slog.Level(l).String() }

// SlogLevel returns l as a slog.Level.
func (l LogLevel) SlogLevel() slog.Level { return slog.Level(l) }

// ParseLevel accepts "debug", "info", "warn" (or "warning") and "error",
// case-insensitively. The empty string means info. Anything else yields
// LevelInfo and an error.
func ParseLevel(s string) (LogLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	case "debug", "info", "warn", "error":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(name)); err != nil {
			return LevelInfo, err
		}
		return LogLevel(lvl), nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format selects the slog handler used for output.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Redacted replaces the value of any attribute whose key names a secret.
const Redacted = "[REDACTED]"

var secretKeys = map[string]struct{}{
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"code":          {},
	"code_verifier": {},
	"client_secret": {},
	"authorization": {},
	"password":      {},
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}

var (
	mu     sync.RWMutex
	active *slog.Logger
)

// InitForCLI installs a text logger at the given level.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	InitForCLIWithFormat(filterLevel, FormatText, output)
}

// InitForCLIWithFormat installs a logger writing format to output and makes
// it the slog default. Attributes named after credentials are always
// redacted.
func InitForCLIWithFormat(filterLevel LogLevel, format Format, output io.Writer) {
	opts := &slog.HandlerOptions{Level: filterLevel.SlogLevel(), ReplaceAttr: redact}

	var handler slog.Handler = slog.NewTextHandler(output, opts)
	if format == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	}
	logger := slog.New(handler)

	mu.Lock()
	active = logger
	mu.Unlock()
	slog.SetDefault(logger)
}

// Logger returns the active logger tagged with subsystem.
func Logger(subsystem string) *slog.Logger {
	return current().With(slog.String("subsystem", subsystem))
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if active == nil {
		return slog.Default()
	}
	return active
}

func emit(level slog.Level, subsystem string, err error, format string, args []any) {
	logger := current()
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogAttrs(ctx, level, format, attrs...)
}

// Debug logs a printf-style message at debug level.
func Debug(subsystem, format string, args ...any) {
	emit(slog.LevelDebug, subsystem, nil, format, args)
}

// Info logs a printf-style message at info level.
func Info(subsystem, format string, args ...any) {
	emit(slog.LevelInfo, subsystem, nil, format, args)
}

// Warn logs a printf-style message at warn level.
func Warn(subsystem, format string, args ...any) {
	emit(slog.LevelWarn, subsystem, nil, format, args)
}

// Error logs at error level with err attached as the "error" attribute.
func Error(subsystem string, err error, format string, args ...any) {
	emit(slog.LevelError, subsystem, err, format, args)
}

// AuditEvent describes a credential operation. Token values never belong
// in any field.
type AuditEvent struct {
	Action   string // token_stored, token_deleted, token_revoked, ...
	Outcome  string // success or failure
	Provider string
	Key      string
	Error    error
}

// Audit writes a SECURITY_AUDIT line, at warn level when the event carries
// an error and at info otherwise.
func Audit(event AuditEvent) {
	level := slog.LevelInfo
	attrs := make([]slog.Attr, 0, 5)
	attrs = append(attrs, slog.String("event", event.Action), slog.String("outcome", event.Outcome))
	if event.Provider != "" {
		attrs = append(attrs, slog.String("provider", event.Provider))
	}
	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.Error != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Error.Error()))
	}
	current().LogAttrs(context.Background(), level, "SECURITY_AUDIT: "+event.Action, attrs...)
}
