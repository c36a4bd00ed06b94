// Package logging wires zerolog with optional rotated file output.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"healthsync/internal/config"
)

// New builds the application logger from config. With a file configured,
// output rotates via lumberjack; otherwise it goes to stderr.
func New(conf config.LoggerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(conf.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if conf.File != "" {
		w = &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    conf.MaxSizeMB,
			MaxBackups: conf.MaxBackups,
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
