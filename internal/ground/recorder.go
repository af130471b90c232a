package ground

import (
	"encoding/csv"
	"fmt"
	"os"

	"firestige.xyz/satlink/internal/telemetry"
)

// Recorder appends received telemetry to a CSV file. Rows are flushed as
// they arrive so a crashed or interrupted run keeps its data.
type Recorder struct {
	f *os.File
	w *csv.Writer
}

// NewRecorder creates (or truncates) the CSV file and writes the header.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry log %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(telemetry.CSVHeader()); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write telemetry header: %w", err)
	}
	w.Flush()

	return &Recorder{f: f, w: w}, nil
}

// Record appends one telemetry row.
func (r *Recorder) Record(t telemetry.Telemetry) error {
	if err := r.w.Write(t.CSVRow()); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

// Close flushes and closes the file.
func (r *Recorder) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}
