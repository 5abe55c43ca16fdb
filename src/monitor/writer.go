package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

// DefaultLogPath is where the collector appends records when nothing else is configured.
const DefaultLogPath = "logs/wifi_bench.jsonl"

// ResultWriter appends records to a JSONL file, one object per line.
type ResultWriter struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewResultWriter returns a writer for path on fsys (nil means the OS file system).
func NewResultWriter(fsys afero.Fs, path string) *ResultWriter {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if path == "" {
		path = DefaultLogPath
	}
	return &ResultWriter{fs: fsys, path: path}
}

// Path returns the log path.
func (w *ResultWriter) Path() string { return w.path }

// Append writes rec as one line, creating the file and its directory when needed.
func (w *ResultWriter) Append(rec *types.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if dir := filepath.Dir(w.path); dir != "." {
		if _, err := w.fs.Stat(dir); os.IsNotExist(err) {
			if err := w.fs.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log dir: %w", err)
			}
		}
	}
	f, err := w.fs.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	// a single write keeps a line whole for readers of the same file
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("write log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log: %w", err)
	}
	return nil
}
