package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	globalLogger zerolog.Logger
	initialized  bool
)

var levels = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
	"fatal": zerolog.FatalLevel,
	"panic": zerolog.PanicLevel,
}

// InitLogger installs the process-wide logger writing to out. Only the
// first call has any effect.
func InitLogger(out io.Writer, level string, pretty bool) {
	if initialized {
		return
	}
	zerolog.SetGlobalLevel(ParseLevel(level))

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	globalLogger = zerolog.New(out).With().Timestamp().Logger()
	log.Logger = globalLogger
	initialized = true
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// PrettyOutput resolves a log format setting. "auto" is pretty only when
// fd is a terminal.
func PrettyOutput(format string, fd uintptr) bool {
	switch format {
	case "console", "pretty":
		return true
	case "json":
		return false
	default:
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
}

// GetLogger returns the process-wide logger, installing a JSON info logger
// on stdout if none was set up.
func GetLogger() zerolog.Logger {
	if !initialized {
		InitLogger(os.Stdout, "info", false)
	}
	return globalLogger
}

// WithRequestID tags the logger with id, generating one when id is empty.
func WithRequestID(id string) zerolog.Logger {
	if id == "" {
		id = NewRequestID()
	}
	return GetLogger().With().Str("request_id", id).Logger()
}

func NewRequestID() string {
	return uuid.NewString()
}
