package flightlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONStdoutWriter prints flight log rows as JSON lines to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs a row in JSON format.
func (w *JSONStdoutWriter) Write(row Row) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteBatch outputs multiple rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []Row) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}
