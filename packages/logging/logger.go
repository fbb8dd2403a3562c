package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the diagnostics sink shared by the runner, the macro engine and
// the CLI. kv is a flat list of alternating keys and values.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	// Warnf matches the WarnFunc hooks of the macro and capture packages.
	Warnf(format string, args ...any)
	Enabled(level Level) bool
}

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Options struct {
	Level   Level
	NoColor bool
	// Console receives human-readable lines; defaults to stderr.
	Console io.Writer
	// File, when set, also receives JSON lines, rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type zeroLogger struct {
	log    zerolog.Logger
	closer io.Closer
}

// New builds a Logger from opts. Close the returned closer to flush the log
// file.
func New(opts Options) (Logger, io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Console
	if out == nil {
		out = os.Stderr
	}

	console := zerolog.ConsoleWriter{
		Out:          out,
		NoColor:      opts.NoColor,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
		}
		writers = append(writers, file)
		closer = file
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &zeroLogger{log: log, closer: closer}, closer, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return &zeroLogger{log: zerolog.Nop(), closer: nopCloser{}}
}

func (l *zeroLogger) Debug(msg string, kv ...any) { l.event(l.log.Debug(), msg, kv) }
func (l *zeroLogger) Info(msg string, kv ...any)  { l.event(l.log.Info(), msg, kv) }
func (l *zeroLogger) Warn(msg string, kv ...any)  { l.event(l.log.Warn(), msg, kv) }
func (l *zeroLogger) Error(msg string, kv ...any) { l.event(l.log.Error(), msg, kv) }

func (l *zeroLogger) Err(err error, msg string, kv ...any) {
	l.event(l.log.Error().Err(err), msg, kv)
}

func (l *zeroLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *zeroLogger) Enabled(level Level) bool {
	lvl, err := parseLevel(level)
	if err != nil {
		return false
	}
	return l.log.GetLevel() <= lvl && l.log.GetLevel() != zerolog.Disabled
}

func (l *zeroLogger) event(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			e = e.Str(key, "(missing)")
			break
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func parseLevel(level Level) (zerolog.Level, error) {
	if level == "" {
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(string(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
