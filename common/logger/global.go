package logger

// Global is the process-wide logger used by library packages. It is nil
// until the binary installs one, so callers guard with `if logger.Global != nil`.
var Global *Logger

// SetGlobal installs l as the process-wide logger.
func SetGlobal(l *Logger) {
	Global = l
}
