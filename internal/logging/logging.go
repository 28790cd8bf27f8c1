// Package logging provides the injectable logging sink used in place of the
// global mutable debug flag the teacher's source carried. The zero value of
// every exported type here is safe and silent.
package logging

import "fmt"

// Logger is the sink the codec writes diagnostic messages to. Implementations
// must be safe to call from a single logical task (no concurrency
// requirement, matching the library's single-threaded-cooperative model).
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Noop discards everything. It is the default sink for every File
// unless a caller supplies one via WithLogger.
type Noop struct{}

func (Noop) Debugf(string, ...any) {}
func (Noop) Warnf(string, ...any)  {}
func (Noop) Errorf(string, ...any) {}

// Default is the shared no-op instance, avoiding an allocation per File.
var Default Logger = Noop{}

// Funcs adapts three plain functions into a Logger, useful for tests that
// want to assert on emitted messages without implementing the interface.
type Funcs struct {
	Debug func(string)
	Warn  func(string)
	Error func(string)
}

func (f Funcs) Debugf(format string, args ...any) {
	if f.Debug != nil {
		f.Debug(fmt.Sprintf(format, args...))
	}
}

func (f Funcs) Warnf(format string, args ...any) {
	if f.Warn != nil {
		f.Warn(fmt.Sprintf(format, args...))
	}
}

func (f Funcs) Errorf(format string, args ...any) {
	if f.Error != nil {
		f.Error(fmt.Sprintf(format, args...))
	}
}
