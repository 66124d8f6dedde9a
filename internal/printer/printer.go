// Package printer writes colored CLI output for the steamhub commands.
// Errors go to stderr as a title, an explanation and numbered suggestions.
package printer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

func init() {
	// NO_COLOR disables colors; otherwise colors stay on when piped.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

// SetOutput redirects printing, returning a func that restores the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		stdout, stderr = prevOut, prevErr
	}
}

// Stdout returns the current standard output writer.
func Stdout() io.Writer {
	return stdout
}

func withPrefix(prefix, msg string) string {
	if strings.HasPrefix(msg, prefix) {
		return msg
	}
	return prefix + " " + msg
}

// Success prints a green line prefixed with a checkmark.
func Success(format string, a ...any) {
	green.Fprintln(stdout, withPrefix("✓", fmt.Sprintf(format, a...)))
}

// Warning prints a yellow line prefixed with a warning sign.
func Warning(format string, a ...any) {
	yellow.Fprintln(stdout, withPrefix("⚠️ ", fmt.Sprintf(format, a...)))
}

// Step prints a cyan progress line.
func Step(format string, a ...any) {
	cyan.Fprintln(stdout, withPrefix("→", fmt.Sprintf(format, a...)))
}

// Info prints an uncolored line.
func Info(format string, a ...any) {
	fmt.Fprintln(stdout, fmt.Sprintf(format, a...))
}

// Detail prints a dimmed key/value line.
func Detail(key, value string) {
	faint.Fprintf(stdout, "  %s: ", key)
	fmt.Fprintln(stdout, value)
}

// Error prints a formatted error to stderr and returns an error carrying only
// the title, for cobra to exit non-zero with.
func Error(title, explanation string, suggestions ...string) error {
	return ErrorWithContext(title, explanation, nil, suggestions...)
}

// ErrorWithContext is Error with key/value details printed between the
// explanation and the suggestions.
func ErrorWithContext(title, explanation string, details map[string]string, suggestions ...string) error {
	red.Fprintf(stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintln(stderr, explanation)
	}

	if len(details) > 0 {
		fmt.Fprintln(stderr)
		for key, value := range details {
			fmt.Fprintf(stderr, "  %s: %s\n", key, value)
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(stderr, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(stderr, "  %d. %s\n", i+1, s)
		}
	}

	return &printedError{title: title}
}

// printedError is returned once an error has been written to stderr.
type printedError struct {
	title string
}

func (e *printedError) Error() string {
	return e.title
}

// IsPrinted reports whether err was already printed by Error or
// ErrorWithContext.
func IsPrinted(err error) bool {
	var p *printedError
	return errors.As(err, &p)
}
