// Package xlog provides the keyspace's structured logging, a thin wrapper
// around zerolog matching the conventions of github.com/cuemby/warren's
// pkg/log: a package-level Logger, an Init for configuring level/output,
// and WithComponent for scoping child loggers to one subsystem (journal,
// compaction, keyspace, ...).
package xlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the package-wide logger. It defaults to info-level console
// output so the module is usable before Init is ever called.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// Config configures the global logger.
type Config struct {
	Level  zerolog.Level
	JSON   bool
	Output io.Writer
}

// Init (re)configures the global logger. Safe to call once at startup,
// e.g. from a cmd/ main or test TestMain.
func Init(cfg Config) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	zerolog.SetGlobalLevel(cfg.Level)

	if cfg.JSON {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: output}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with the given subsystem
// name, e.g. xlog.WithComponent("journal").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
