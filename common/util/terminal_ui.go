// Package util holds the terminal messages shown by the command line next
// to its command output.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorDim    = "\033[2m"
)

var (
	mu        sync.Mutex
	output    io.Writer = os.Stderr
	colored             = isTerminal(os.Stderr)
	quietMode bool
)

// SetOutput redirects messages. Colors are used only when w is a terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	colored = isTerminal(w)
}

// SetQuietMode suppresses info and success messages. Warnings and errors
// are still shown, as timestamped log lines.
func SetQuietMode(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	quietMode = quiet
}

// IsQuietMode returns true if quiet mode is enabled
func IsQuietMode() bool {
	mu.Lock()
	defer mu.Unlock()
	return quietMode
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	show(false, "✓", ColorGreen, "INFO", ColorBlue, message)
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	show(false, "•", ColorCyan, "INFO", ColorBlue, message)
}

// ShowWarning displays a warning message, even in quiet mode
func ShowWarning(message string) {
	show(true, "⚠", ColorYellow, "WARN", ColorYellow, message)
}

// ShowError displays an error message, even in quiet mode
func ShowError(message string) {
	show(true, "✗", ColorRed, "ERROR", ColorRed, message)
}

func show(always bool, icon, iconColor, level, levelColor, message string) {
	mu.Lock()
	defer mu.Unlock()

	if quietMode {
		if !always {
			return
		}
		// Format: dim-timestamp colorized-level message
		timestamp := time.Now().Format(time.RFC3339)
		fmt.Fprintf(output, "%s %s %s\n", paint(ColorDim, timestamp), paint(levelColor, "["+level+"]"), message)
		return
	}
	fmt.Fprintf(output, "  %s %s\n", paint(iconColor, icon), message)
}

func paint(color, s string) string {
	if !colored {
		return s
	}
	return color + s + ColorReset
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
