package rtlog

import (
	"github.com/joeycumines/logiface"
)

// FromLogiface adapts an already-configured logiface.Logger[E] into a
// runtime Logger, so a caller who already runs a logiface pipeline (their
// own Event implementation, any of the logiface backend adapters) can point
// the runtime's own diagnostics at it instead of DefaultLogger.
func FromLogiface[E logiface.Event](l *logiface.Logger[E]) Logger {
	return &logifaceLogger[E]{l: l}
}

type logifaceLogger[E logiface.Event] struct {
	l *logiface.Logger[E]
}

func (a *logifaceLogger[E]) IsEnabled(level Level) bool {
	return a.l.Level() >= toLogifaceLevel(level)
}

func (a *logifaceLogger[E]) Log(entry Entry) {
	b := a.l.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Component != "" {
		b = b.Str("component", entry.Component)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Fields {
		b = b.Any(k, v)
	}
	b.Log(entry.Message)
}

func toLogifaceLevel(level Level) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
