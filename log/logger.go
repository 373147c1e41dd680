// package log provides leveled, module-scoped loggers for the engine. Every package creates its own named logger with New
// and the application selects the sink and verbosity once at startup.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

// Level is the verbosity threshold passed to SetLevel.
type Level logging.Level

// The levels that can be passed to the SetLevel function.
const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var leveledBackend logging.LeveledBackend

// Logger is the leveled logging surface used throughout the engine.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// New creates a logger tagged with the given module name.
//
// Parameters:
//   - module: the name printed in the module column of each record
//
// Returns:
//   - Logger: the named logger
func New(module string) Logger {
	return logging.MustGetLogger(module)
}

// SetSink redirects all loggers to the given writer. The current level is preserved.
//
// Parameters:
//   - sink: destination of formatted log records
func SetSink(sink io.Writer) {
	level := logging.NOTICE
	if leveledBackend != nil {
		level = leveledBackend.GetLevel("")
	}
	backend := logging.NewLogBackend(sink, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveledBackend = logging.AddModuleLevel(formatted)
	leveledBackend.SetLevel(level, "")
	logging.SetBackend(leveledBackend)
}

// SetLevel sets the verbosity for every module.
//
// Parameters:
//   - level: the minimum level that is emitted
func SetLevel(level Level) {
	leveledBackend.SetLevel(toBackendLevel(level), "")
}

// ParseLevel converts a level name ("debug", "info", "notice", "warning", "error") to a Level.
// Unknown names map to Notice.
//
// Parameters:
//   - name: case-insensitive level name
//
// Returns:
//   - Level: the parsed level
//   - bool: false if the name was not recognized
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return Debug, true
	case "info":
		return Info, true
	case "notice", "":
		return Notice, true
	case "warning", "warn":
		return Warning, true
	case "error":
		return Error, true
	}
	return Notice, false
}

func toBackendLevel(level Level) logging.Level {
	switch level {
	case Debug:
		return logging.DEBUG
	case Info:
		return logging.INFO
	case Warning:
		return logging.WARNING
	case Error:
		return logging.ERROR
	default:
		return logging.NOTICE
	}
}

func init() {
	SetSink(os.Stdout)
	SetLevel(Notice)
}
