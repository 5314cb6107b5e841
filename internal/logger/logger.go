package logger

import (
	"io"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

var Log = zerolog.Nop()

// Init initializes the global logger with the given level.
// Valid levels: debug, info, warn, error
func Init(level string, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	Log = zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Module returns a logger with a module field for scoped logging.
func Module(name string) zerolog.Logger {
	return Log.With().Str("module", name).Logger()
}

// BadgerLogger adapts zerolog to badger's Logger interface.
type BadgerLogger struct {
	zlog zerolog.Logger
}

// NewBadgerLogger creates a badger-compatible logger for the given module.
func NewBadgerLogger(module string) badger.Logger {
	return &BadgerLogger{zlog: Module(module)}
}

func (l *BadgerLogger) Errorf(msg string, args ...interface{}) {
	l.zlog.Error().Msgf(msg, args...)
}

func (l *BadgerLogger) Warningf(msg string, args ...interface{}) {
	l.zlog.Warn().Msgf(msg, args...)
}

// Infof is demoted to debug; badger reports every compaction at info.
func (l *BadgerLogger) Infof(msg string, args ...interface{}) {
	l.zlog.Debug().Msgf(msg, args...)
}

func (l *BadgerLogger) Debugf(msg string, args ...interface{}) {
	l.zlog.Debug().Msgf(msg, args...)
}
