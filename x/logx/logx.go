// Package logx is the firmware's component-scoped logger. Host builds log
// through zap; TinyGo builds fall back to println so no formatting machinery
// is linked into the image.
package logx

// Log levels accepted by SetLevel.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Logger tags every line with the owning component.
type Logger struct {
	component string
	b         backend
}

// New returns a logger for one component ("ota", "prov", "power", ...).
func New(component string) *Logger {
	return &Logger{component: component, b: newBackend(component)}
}

func (l *Logger) Component() string { return l.component }

func (l *Logger) Debug(msg string, kv ...any) { l.b.log(levelDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.b.log(levelInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.b.log(levelWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.b.log(levelError, msg, kv) }

type level uint8

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

func parseLevel(s string) level {
	switch s {
	case DebugLevel:
		return levelDebug
	case WarnLevel:
		return levelWarn
	case ErrorLevel:
		return levelError
	default:
		return levelInfo
	}
}

type backend interface {
	log(lv level, msg string, kv []any)
}
