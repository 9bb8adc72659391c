package excel

import (
	"fmt"
	"os"
	"path/filepath"
)

// atomicWriter stages workbook bytes in a temp file next to the target and
// renames the result over it on Commit. Readers never observe a half-written
// workbook, and a crash mid-save leaves the previous file intact.
type atomicWriter struct {
	target string
	tmp    *os.File
}

// newAtomicWriter opens a temp file in the target's directory. Keeping both
// on one filesystem is what makes the final rename atomic.
func newAtomicWriter(target string) (*atomicWriter, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ytgrowth-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &atomicWriter{target: target, tmp: tmp}, nil
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

// Commit flushes the staged bytes to disk and moves them over the target.
func (w *atomicWriter) Commit() error {
	if err := w.tmp.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(w.tmp.Name(), w.target); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("replace %s: %w", w.target, err)
	}
	return nil
}

// Abort drops the staged bytes without touching the target.
func (w *atomicWriter) Abort() error {
	return w.discard()
}

func (w *atomicWriter) discard() error {
	w.tmp.Close()
	return os.Remove(w.tmp.Name())
}
