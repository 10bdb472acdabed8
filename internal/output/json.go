package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes values as a pretty-printed JSON document. A single
// written value is emitted directly; multiple values become an array.
type JSONWriter struct {
	w     *bufio.Writer
	items []any
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: bufio.NewWriter(w)}
}

// Write buffers a single value.
func (w *JSONWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// Flush writes the buffered values.
func (w *JSONWriter) Flush() error {
	var out any
	switch len(w.items) {
	case 0:
		return w.w.Flush()
	case 1:
		out = w.items[0]
	default:
		out = w.items
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter writes newline-delimited JSON, one value per line, flushed
// immediately so a run's results survive an interrupted process.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write writes a single value as a JSON line.
func (w *JSONLWriter) Write(data any) error {
	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
