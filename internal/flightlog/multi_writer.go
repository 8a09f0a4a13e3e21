package flightlog

import "errors"

// MultiWriter fans rows out to several writers; every writer sees every row
// even when an earlier one fails.
type MultiWriter struct {
	writers []TelemetryWriter
}

// NewMultiWriter creates a MultiWriter over the given writers.
func NewMultiWriter(writers ...TelemetryWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write fans a single row out to all writers.
func (m *MultiWriter) Write(row Row) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteBatch fans a batch out, using native batch support where available.
func (m *MultiWriter) WriteBatch(rows []Row) error {
	var errs []error
	for _, w := range m.writers {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}
