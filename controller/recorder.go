package controller

import (
	"bufio"
	"fmt"
	"os"
)

// recorder appends one JSON snapshot per line to a file.
type recorder struct {
	path string
	f    *os.File
	w    *bufio.Writer
	n    int
}

func openRecorder(path string) (*recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}
	return &recorder{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (r *recorder) write(line []byte) error {
	if _, err := r.w.Write(line); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	r.n++
	return nil
}

func (r *recorder) close() error {
	flushErr := r.w.Flush()
	closeErr := r.f.Close()
	if flushErr != nil {
		return fmt.Errorf("flush recording %s: %w", r.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close recording %s: %w", r.path, closeErr)
	}
	return nil
}
