// Package output renders command results as text, JSON, or YAML.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
)

// Format selects how results are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text|json|yaml)", s)
	}
}

var outputMode atomic.Value

func init() {
	outputMode.Store(FormatText)
}

// SetOutputMode sets the global output mode used by convenience helpers.
func SetOutputMode(f Format) {
	outputMode.Store(f)
}

// GetOutputMode returns the current global output mode.
func GetOutputMode() Format {
	if v, ok := outputMode.Load().(Format); ok {
		return v
	}
	return FormatText
}

// IsStructured returns true when the global mode is JSON or YAML.
func IsStructured() bool {
	return GetOutputMode() != FormatText
}

// Writer renders values in a fixed format.
type Writer struct {
	format Format
	out    io.Writer
}

// Option configures a Writer.
type Option func(*Writer)

// WithWriter redirects output (defaults to stdout).
func WithWriter(w io.Writer) Option {
	return func(wr *Writer) { wr.out = w }
}

// New returns a Writer for the given format.
func New(format Format, opts ...Option) *Writer {
	w := &Writer{format: format, out: os.Stdout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Format returns the writer's format.
func (w *Writer) Format() Format { return w.format }

// Write renders v. Text mode uses fmt.Stringer when available.
func (w *Writer) Write(v any) error {
	switch w.format {
	case FormatJSON:
		return writeJSON(w.out, v, true)
	case FormatYAML:
		return writeYAML(w.out, v)
	default:
		if s, ok := v.(fmt.Stringer); ok {
			_, err := fmt.Fprintln(w.out, s.String())
			return err
		}
		_, err := fmt.Fprintf(w.out, "%v\n", v)
		return err
	}
}
