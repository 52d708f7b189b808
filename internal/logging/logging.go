// Package logging builds the component loggers used across wsop.
//
// Components log through a plain *log.Logger with a "[component] " prefix.
// Output goes to stderr and, when a log file is configured, also to a
// size-rotated file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the shared log sink.
type Options struct {
	// File is the rotating log file path. Empty logs to stderr only.
	File string

	// MaxSizeMB is the size at which the file is rotated
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept
	MaxBackups int

	// MaxAgeDays is how long rotated files are kept
	MaxAgeDays int

	// Quiet drops the stderr copy, leaving only the file
	Quiet bool
}

// Sink is the destination every component logger writes to.
type Sink struct {
	out  io.Writer
	file *lumberjack.Logger
}

// Open creates the sink described by opts.
func Open(opts Options) (*Sink, error) {
	s := &Sink{}

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, err
		}
		s.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		}
		writers = append(writers, s.file)
	}

	switch len(writers) {
	case 0:
		s.out = io.Discard
	case 1:
		s.out = writers[0]
	default:
		s.out = io.MultiWriter(writers...)
	}
	return s, nil
}

// Component returns a logger prefixed with "[name] ".
func (s *Sink) Component(name string) *log.Logger {
	if s == nil {
		return Default(name)
	}
	return log.New(s.out, "["+name+"] ", log.LstdFlags)
}

// Writer exposes the raw sink.
func (s *Sink) Writer() io.Writer {
	if s == nil {
		return os.Stderr
	}
	return s.out
}

// Close flushes and closes the log file, if any.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Default returns a stderr logger for name. Components fall back to it when
// constructed without a logger.
func Default(name string) *log.Logger {
	return log.New(os.Stderr, "["+name+"] ", log.LstdFlags)
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
