// Package record appends per-pass token rates to a tab separated data file.
package record

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
)

// Recorder writes one row per pass. It is owned by the scheduler loop.
type Recorder struct {
	f *os.File
	w *bufio.Writer
}

// Open truncates or creates path and returns a Recorder writing to it.
func Open(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	return &Recorder{f: f, w: bufio.NewWriter(f)}, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.f.Name() }

// Row writes "<pass>\t<rate>\t...\n" and flushes it.
func (r *Recorder) Row(pass uint64, rates []float64) error {
	buf := strconv.AppendUint(nil, pass, 10)
	buf = append(buf, '\t')
	for _, v := range rates {
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, '\t')
	}
	buf = append(buf, '\n')
	if _, err := r.w.Write(buf); err != nil {
		return fmt.Errorf("write data row: %w", err)
	}
	return r.w.Flush()
}

// Close flushes and closes the file.
func (r *Recorder) Close() error {
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		return err
	}
	return r.f.Close()
}
