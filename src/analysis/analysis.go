package analysis

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"

	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
)

var (
	// ErrNoRecords is returned when a log yields no valid sample.
	ErrNoRecords = errors.New("no valid records in log")
	// ErrLogNotFound is returned when the log file does not exist. It wraps fs.ErrNotExist.
	ErrLogNotFound = fmt.Errorf("log file not found: %w", fs.ErrNotExist)
)

// Options controls one aggregation pass.
type Options struct {
	Segment  SegmentOptions
	Location *time.Location // display zone; nil means DisplayZone
	Clock    clock.Clock    // source of generated_at; nil means wall clock
	Fs       afero.Fs       // nil means the OS file system
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = DisplayZone
	}
	if o.Segment.Location == nil {
		o.Segment.Location = o.Location
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	return o
}

// Report is the result of one pass: the export plus what was dropped along the way.
type Report struct {
	Export *Export
	Ingest *Ingest
	Runs   []*RunStats
}

// AnalyzeFile runs a full pass over the log at path.
func AnalyzeFile(path string, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	f, err := opts.Fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	logging.Infof("[analysis] reading samples from %s (gap_threshold=%s)", path, effectiveGap(opts.Segment))
	return Analyze(f, opts)
}

// Analyze runs a full pass over JSONL read from r.
func Analyze(r io.Reader, opts Options) (*Report, error) {
	defer logging.TimeTrack(time.Now(), "analysis")
	opts = opts.withDefaults()
	in, err := Normalize(r, opts.Location)
	if err != nil {
		return nil, err
	}
	for _, le := range in.Errors {
		logging.Warnf("[analysis] skipped line %d: %s", le.Line, le.Reason)
	}
	if len(in.Samples) == 0 {
		return &Report{Ingest: in}, ErrNoRecords
	}
	runs := Segment(in.Samples, opts.Segment)
	stats := Aggregate(runs)
	exp := BuildExport(stats, opts.Clock.Now())
	logging.Infof("[analysis] %d records in %d runs (%d lines skipped)", len(in.Samples), len(runs), in.Skipped())
	return &Report{Export: exp, Ingest: in, Runs: stats}, nil
}

func effectiveGap(o SegmentOptions) time.Duration {
	return o.withDefaults().GapThreshold
}
