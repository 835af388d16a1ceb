package obs

import (
	"log"
	"os"
)

// Log levels, from most to least severe.
const (
	LogLevelError = 1
	LogLevelWarn  = 2
	LogLevelInfo  = 3
	LogLevelDebug = 4
)

// LogLevel is the process-wide verbosity gate. -v sets Debug, default is Info.
var LogLevel = LogLevelInfo

var std = log.New(os.Stderr, "", log.LstdFlags)

// Errorf always logs; it marks the failure path the process couldn't route around.
func Errorf(format string, args ...interface{}) {
	std.Printf("❌ "+format, args...)
}

// Warnf logs at Warn level and above.
func Warnf(format string, args ...interface{}) {
	if LogLevel >= LogLevelWarn {
		std.Printf("⚠️ "+format, args...)
	}
}

// Infof logs at Info level and above.
func Infof(format string, args ...interface{}) {
	if LogLevel >= LogLevelInfo {
		std.Printf(format, args...)
	}
}

// Debugf logs only when LogLevel is Debug or higher.
func Debugf(format string, args ...interface{}) {
	if LogLevel >= LogLevelDebug {
		std.Printf("🔍 "+format, args...)
	}
}
