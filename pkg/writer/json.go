// Package writer serializes benchmark reports to JSON. The benchmark harness
// uses the pretty form for report files meant to be read by people and the
// compact form for payloads headed to object storage.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONWriter encodes values of type T as JSON documents.
type JSONWriter[T any] struct {
	// Indent is the per-level indentation. Empty means compact output.
	Indent string
}

// NewJSONWriter returns a writer producing compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter returns a writer producing two-space indented output.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write encodes v onto out.
func (jw *JSONWriter[T]) Write(v T, out io.Writer) error {
	enc := json.NewEncoder(out)
	if jw.Indent != "" {
		enc.SetIndent("", jw.Indent)
	}
	return enc.Encode(v)
}

// WriteToFile encodes v into a newly created file at path.
func (jw *JSONWriter[T]) WriteToFile(v T, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return jw.Write(v, f)
}
