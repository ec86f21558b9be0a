// Package logging is the thin seam between the core and zerolog: it
// exposes exactly the six severity levels the core's external-interface
// contract requires (TRACE, DEBUG, INFO, WARN, ERROR, FATAL) so that
// engine, session, and protostate never import zerolog directly.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Field is one structured key/value pair attached to a log call.
type Field struct {
	Key string
	Val any
}

func Str(key, val string) Field   { return Field{Key: key, Val: val} }
func Int(key string, val int) Field { return Field{Key: key, Val: val} }
func Uint64(key string, val uint64) Field { return Field{Key: key, Val: val} }
func Err(err error) Field         { return Field{Key: "error", Val: err} }

// Logger is the interface core components accept. It is implemented by
// *zerologLogger; tests can substitute a no-op or recording fake without
// pulling in zerolog.
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
}

type zerologLogger struct {
	z zerolog.Logger
}

// New builds a Logger backed by zerolog, writing one JSON object per log
// line to w (stderr if w is nil).
func New(w io.Writer, level zerolog.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	z := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &zerologLogger{z: z}
}

// Default returns a Logger at INFO level writing to stderr.
func Default() Logger {
	return New(os.Stderr, zerolog.InfoLevel)
}

func apply(e *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Val.(type) {
		case string:
			e = e.Str(f.Key, v)
		case int:
			e = e.Int(f.Key, v)
		case uint64:
			e = e.Uint64(f.Key, v)
		case error:
			e = e.AnErr(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	return e
}

func (l *zerologLogger) Trace(msg string, fields ...Field) {
	apply(l.z.Trace(), fields).Msg(msg)
}

func (l *zerologLogger) Debug(msg string, fields ...Field) {
	apply(l.z.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) Info(msg string, fields ...Field) {
	apply(l.z.Info(), fields).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, fields ...Field) {
	apply(l.z.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) Error(msg string, fields ...Field) {
	apply(l.z.Error(), fields).Msg(msg)
}

func (l *zerologLogger) Fatal(msg string, fields ...Field) {
	apply(l.z.Fatal(), fields).Msg(msg)
}

// ParseLevel maps a CLI-supplied level name onto zerolog.Level, defaulting
// to InfoLevel for anything unrecognized.
func ParseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
