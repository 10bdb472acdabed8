// Package output serializes archive artifacts and run results.
package output

import (
	"fmt"
	"io"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Writer serializes values to an underlying stream.
type Writer interface {
	// Write outputs a single value.
	Write(data any) error

	// Flush ensures all buffered data is written.
	Flush() error

	// Close flushes and releases resources.
	Close() error
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(w), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// ParseFormat validates a format string from a flag.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatJSONL, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}
