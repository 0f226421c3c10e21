package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// newLogger writes human-readable logs to w. Quiet wins over verbose.
func newLogger(w io.Writer, verbose, quiet bool) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case quiet:
		level = zerolog.ErrorLevel
	case verbose:
		level = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
