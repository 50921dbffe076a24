// Package logging is the single logging collaborator the document core
// never imports (spec §9): a thin wrapper over the standard log package,
// the same one-call-site style the rest of this repo's ambient code uses
// (log.Printf/log.Fatalf, no structured logging library).
package logging

import "log"

// Level is the severity of an emitted message.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Emit logs message at level, the one function spec §9 asks for.
func Emit(level Level, message string) {
	log.Printf("[%s] %s", level, message)
}

// Emitf formats like log.Printf before emitting.
func Emitf(level Level, format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{level}, args...)...)
}
