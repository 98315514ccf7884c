package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// zerologLogger is the production Logger backed by rs/zerolog.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a Logger writing JSON lines to w at the given
// minimum level. When w is a terminal, records are rendered with zerolog's
// ConsoleWriter instead.
func NewZerologLogger(w io.Writer, level Level) Logger {
	installStackMarshaler()
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

// NewMultiLogger fans records out to every writer, e.g. a run log file and stderr.
func NewMultiLogger(level Level, writers ...io.Writer) Logger {
	installStackMarshaler()
	outs := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339}
		}
		outs = append(outs, w)
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(outs...)).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *zerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any) { emit(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any) { emit(l.zl.Warn(), msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(normalize(fields)).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// emit attaches a leading error (stack and site included) and the remaining
// key/value pairs to ev. A nil ev means the level is disabled.
func emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Stack().Err(err)
			if site, ok := errors.SiteOf(err); ok {
				ev = ev.Str(SiteKey, site.String())
			}
			fields = fields[1:]
		}
	}
	if len(fields) > 0 {
		ev = ev.Fields(normalize(fields))
	}
	ev.Msg(msg)
}

// normalize drops a dangling key and stringifies errors in value position.
func normalize(fields []any) []any {
	if len(fields)%2 == 1 {
		fields = fields[:len(fields)-1]
	}
	out := make([]any, len(fields))
	for i, f := range fields {
		if err, ok := f.(error); ok && i%2 == 1 {
			out[i] = err.Error()
			continue
		}
		out[i] = f
	}
	return out
}

// RouteWarnings sends library warnings (errors.Warn) to logger until the
// returned restore function is called. Warnings that implement
// zerolog.LogObjectMarshaler are embedded as structured fields.
func RouteWarnings(logger Logger) (restore func()) {
	zl, isZerolog := logger.(*zerologLogger)
	errors.SetZerologWarnFunc(func(w error) {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok && isZerolog {
			zl.zl.Warn().EmbedObject(m).Msg(w.Error())
			return
		}
		logger.Warn(w.Error())
	})
	return func() { errors.SetZerologWarnFunc(nil) }
}
