// Package log provides named loggers for sieve components.
//
// Every line carries the component name as a "[name>]" prefix so output from
// concurrent engines can be told apart:
//
//	l := log.ForService("engine.bing")
//	l.Infof("fetched %d results", n)
//	l.Debugf("raw chunk: %q", chunk) // only with debug enabled
//
// Debug output can be enabled for everything (SetGlobalDebug) or for a set of
// components (EnableDebugFor, EnableDebugList). SetLevel raises the threshold
// for the non debug levels, which the CLI uses to keep stderr quiet while
// results stream to stdout.
//
// All functions are safe for concurrent use.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// ParseLevel accepts the level names in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger writes lines for one named component.
type Logger struct {
	name string
	std  *log.Logger
}

// writerHolder keeps the atomic.Value concrete type stable across writers.
type writerHolder struct {
	w io.Writer
}

var (
	globalDebug  atomic.Bool
	minLevel     atomic.Int32
	serviceDebug sync.Map // name -> *atomic.Bool
	loggers      sync.Map // name -> *Logger
	outputWriter atomic.Value
)

func init() {
	outputWriter.Store(writerHolder{w: os.Stderr})
	minLevel.Store(int32(LevelInfo))
}

// ForService returns the memoized logger for name.
func ForService(name string) *Logger {
	if name == "" {
		name = "sieve"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	w := outputWriter.Load().(writerHolder).w
	logger := &Logger{name: name, std: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
	actual, _ := loggers.LoadOrStore(name, logger)
	return actual.(*Logger)
}

func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

func GlobalDebug() bool {
	return globalDebug.Load()
}

// SetLevel sets the minimum level for Infof, Warnf and Errorf.
func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	v, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	v.(*atomic.Bool).Store(true)
}

func DisableDebugFor(name string) {
	if v, ok := serviceDebug.Load(name); ok {
		v.(*atomic.Bool).Store(false)
	}
}

// EnableDebugList enables debug for a comma separated list of names,
// as accepted by the SIEVE_DEBUG environment variable.
func EnableDebugList(list string) {
	for _, name := range strings.Split(list, ",") {
		EnableDebugFor(strings.TrimSpace(name))
	}
}

// DebugEnabledFor reports whether debug lines for name are written.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if v, ok := serviceDebug.Load(name); ok {
		return v.(*atomic.Bool).Load()
	}
	return false
}

// SetOutput redirects every logger, existing or future, to w.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	outputWriter.Store(writerHolder{w: w})
	loggers.Range(func(_, v any) bool {
		v.(*Logger).std.SetOutput(w)
		return true
	})
}

func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) write(level Level, format string, args []any) {
	l.std.Println(level.String() + " [" + l.name + ">] " + fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	if Level(minLevel.Load()) <= LevelInfo {
		l.write(LevelInfo, format, args)
	}
}

func (l *Logger) Warnf(format string, args ...any) {
	if Level(minLevel.Load()) <= LevelWarn {
		l.write(LevelWarn, format, args)
	}
}

// Errorf is always written.
func (l *Logger) Errorf(format string, args ...any) {
	l.write(LevelError, format, args)
}

func (l *Logger) Debugf(format string, args ...any) {
	if DebugEnabledFor(l.name) {
		l.write(LevelDebug, format, args)
	}
}
