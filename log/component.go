package log

// Logger prefixes every message with a bracketed component name,
// e.g. "[connection] reconnect attempt".
type Logger struct {
	prefix string
}

// New returns a component logger.
func New(component string) *Logger {
	return &Logger{prefix: "[" + component + "] "}
}

func (l *Logger) Trace(msg string, ctx ...interface{}) {
	WithFields(ctx...).Trace(l.prefix + msg)
}

func (l *Logger) Debug(msg string, ctx ...interface{}) {
	WithFields(ctx...).Debug(l.prefix + msg)
}

func (l *Logger) Info(msg string, ctx ...interface{}) {
	WithFields(ctx...).Info(l.prefix + msg)
}

func (l *Logger) Warn(msg string, ctx ...interface{}) {
	WithFields(ctx...).Warn(l.prefix + msg)
}

// Error logs msg with err as the first field.
func (l *Logger) Error(msg string, err error, ctx ...interface{}) {
	fields := append([]interface{}{"err", err}, ctx...)
	WithFields(fields...).Error(l.prefix + msg)
}
