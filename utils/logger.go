package utils

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mdobak/go-xerrors"
)

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

var (
	loggerOnce sync.Once
	logger     *slog.Logger
)

// GetLogger returns the shared structured logger. Errors wrapped with
// xerrors.New are expanded into message plus stack trace attributes.
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:       slog.LevelInfo,
			ReplaceAttr: replaceErrorAttr,
		})
		logger = slog.New(handler)
	})
	return logger
}

func replaceErrorAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Value.Kind() {
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok {
			attr.Value = formatError(err)
		}
	}
	return attr
}

func formatError(err error) slog.Value {
	attrs := []slog.Attr{
		slog.String("msg", err.Error()),
	}

	if frames := traceFrames(err); len(frames) > 0 {
		values := make([]any, 0, len(frames))
		for _, frame := range frames {
			values = append(values, frame)
		}
		attrs = append(attrs, slog.Any("trace", values))
	}

	return slog.GroupValue(attrs...)
}

func traceFrames(err error) []stackFrame {
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	out := make([]stackFrame, 0, len(frames))
	for _, frame := range frames {
		out = append(out, stackFrame{
			Func:   filepath.Base(frame.Function),
			Source: filepath.Join(filepath.Base(filepath.Dir(frame.File)), filepath.Base(frame.File)),
			Line:   frame.Line,
		})
	}
	return out
}

// LogError is a convenience wrapper for boundary error logging.
func LogError(ctx context.Context, msg string, err error) {
	GetLogger().ErrorContext(ctx, msg, slog.Any("error", xerrors.New(err)))
}
