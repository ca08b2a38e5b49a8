package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Muted runs fn with diagnostic logging silenced and restores the previous
// logger on every exit path, including panics. Use this to scope expected
// noise to a single operation instead of toggling the logger globally.
func Muted(fn func()) {
	prev := Logf
	Logf = func(string, ...interface{}) {}
	defer func() { Logf = prev }()
	fn()
}
