package sink

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
)

// StatsFile is the export file name inside the output directory.
const StatsFile = "stats.json"

// FileSink writes stats.json into Dir. The file is replaced atomically so readers never see
// a partial document.
type FileSink struct {
	Fs  afero.Fs
	Dir string
}

// NewFileSink returns a sink writing to dir on fsys; a nil fsys means the OS file system.
func NewFileSink(fsys afero.Fs, dir string) *FileSink {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileSink{Fs: fsys, Dir: dir}
}

func (s *FileSink) Name() string { return "file" }

// Path is the location of the written export.
func (s *FileSink) Path() string { return filepath.Join(s.Dir, StatsFile) }

func (s *FileSink) Write(ctx context.Context, exp *analysis.Export) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Fs.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := afero.TempFile(s.Fs, s.Dir, ".stats-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if err := exp.Encode(tmp); err != nil {
		tmp.Close()
		s.Fs.Remove(name)
		return fmt.Errorf("encode export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.Fs.Remove(name)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.Fs.Rename(name, s.Path()); err != nil {
		s.Fs.Remove(name)
		return fmt.Errorf("replace %s: %w", s.Path(), err)
	}
	return nil
}
