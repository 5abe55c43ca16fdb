package analysis

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

// MaxLineBytes caps a single JSONL line. Longer lines are skipped as ingestion errors.
const MaxLineBytes = 16 * 1024 * 1024

// DisplayZone is the canonical zone used for grouping and presentation (UTC+9).
var DisplayZone = time.FixedZone("JST", 9*60*60)

// Metric indexes the fixed metric set shared by the statistics and the correlation matrix.
type Metric int

const (
	MetricDownload Metric = iota
	MetricUpload
	MetricPing
	MetricRSSI
	MetricNoise
	MetricMCS
	NumMetrics
)

// MetricFields are the export names of the metrics, in matrix order.
var MetricFields = [NumMetrics]string{"download_mbps", "upload_mbps", "ping_ms", "rssi", "noise", "mcs_index"}

func (m Metric) String() string {
	if m < 0 || m >= NumMetrics {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return MetricFields[m]
}

// Sample is one normalized measurement.
type Sample struct {
	Line      int // 1-based line number in the source log
	Timestamp time.Time
	NetworkID string
	RunID     string // explicit run id from the log; empty for legacy records
	Band      *string
	Channel   *float64
	Metrics   [NumMetrics]*float64
}

// Value returns the metric value and whether it was observed.
func (s *Sample) Value(m Metric) (float64, bool) {
	if p := s.Metrics[m]; p != nil {
		return *p, true
	}
	return 0, false
}

// LineError describes one dropped log line.
type LineError struct {
	Line   int
	Reason string
}

func (e LineError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Reason) }

// Ingest is the normalizer output.
type Ingest struct {
	Samples   []Sample    // ascending by timestamp, stable
	Errors    []LineError // dropped lines in file order
	LinesRead int         // non-blank lines seen
}

// Skipped returns how many non-blank lines were dropped.
func (in *Ingest) Skipped() int { return len(in.Errors) }

// Normalize reads JSONL records from r, drops malformed lines and returns the surviving
// samples sorted by time. Only I/O failures are returned as errors.
func Normalize(r io.Reader, loc *time.Location) (*Ingest, error) {
	if loc == nil {
		loc = DisplayZone
	}
	// ReadSlice keeps memory bounded by MaxLineBytes even for a corrupt file with no newlines.
	reader := bufio.NewReaderSize(r, 64*1024)
	out := &Ingest{}
	lineNo := 0
	for {
		var line []byte
		tooLong := false
		var rerr error
		for {
			part, err := reader.ReadSlice('\n')
			if !tooLong {
				if len(line)+len(part) > MaxLineBytes {
					tooLong = true
					line = nil
				} else {
					line = append(line, part...)
				}
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			rerr = err
			break
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, fmt.Errorf("read log: %w", rerr)
		}
		atEOF := rerr != nil
		if atEOF && len(line) == 0 && !tooLong {
			break
		}
		lineNo++
		trimmed := bytes.TrimSpace(line)
		switch {
		case tooLong:
			out.LinesRead++
			out.Errors = append(out.Errors, LineError{Line: lineNo, Reason: fmt.Sprintf("line exceeds %d bytes", MaxLineBytes)})
		case len(trimmed) == 0:
			// blank lines are not records
		default:
			out.LinesRead++
			s, err := decodeSample(trimmed, loc)
			if err != nil {
				out.Errors = append(out.Errors, LineError{Line: lineNo, Reason: err.Error()})
			} else {
				s.Line = lineNo
				out.Samples = append(out.Samples, s)
			}
		}
		if atEOF {
			break
		}
	}
	sort.SliceStable(out.Samples, func(i, j int) bool {
		return out.Samples[i].Timestamp.Before(out.Samples[j].Timestamp)
	})
	return out, nil
}

func decodeSample(line []byte, loc *time.Location) (Sample, error) {
	var rec types.Record
	if err := json.Unmarshal(line, &rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Sample{}, fmt.Errorf("field %s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return Sample{}, fmt.Errorf("invalid JSON: %v", err)
	}
	if strings.TrimSpace(rec.Timestamp) == "" {
		return Sample{}, errors.New("missing timestamp")
	}
	ts, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		return Sample{}, err
	}
	network := rec.Network()
	if network == "" {
		return Sample{}, errors.New("missing ssid")
	}
	s := Sample{
		Timestamp: ts.In(loc),
		NetworkID: network,
		RunID:     explicitRunID(rec.RunID),
		Band:      rec.Band,
		Channel:   rec.Channel,
	}
	s.Metrics[MetricDownload] = rec.DownloadMbps
	s.Metrics[MetricUpload] = rec.UploadMbps
	s.Metrics[MetricPing] = rec.PingMs
	s.Metrics[MetricRSSI] = rec.RSSI
	s.Metrics[MetricNoise] = rec.Noise
	s.Metrics[MetricMCS] = rec.MCSIndex

	for _, m := range []Metric{MetricDownload, MetricUpload, MetricPing} {
		if v, ok := s.Value(m); ok && v < 0 {
			return Sample{}, fmt.Errorf("field %s: negative value %v", m, v)
		}
	}
	for _, m := range []Metric{MetricRSSI, MetricNoise, MetricMCS} {
		if v, ok := s.Value(m); ok && v != math.Trunc(v) {
			return Sample{}, fmt.Errorf("field %s: not an integer: %v", m, v)
		}
	}
	if v, ok := s.Value(MetricMCS); ok && v < 0 {
		return Sample{}, fmt.Errorf("field mcs_index: negative value %v", v)
	}
	if rec.Channel != nil {
		if c := *rec.Channel; c != math.Trunc(c) || c <= 0 {
			return Sample{}, fmt.Errorf("field channel: not a positive integer: %v", c)
		}
	}
	return s, nil
}

// zoned layouts tried after RFC 3339 (compact offsets and a space separator).
var zonedLayouts = []string{
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// explicitRunID keeps a run id verbatim; a blank one marks a legacy record.
func explicitRunID(id string) string {
	if strings.TrimSpace(id) == "" {
		return ""
	}
	return id
}

// ParseTimestamp parses an ISO-8601 timestamp that must carry a zone offset.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return time.Time{}, fmt.Errorf("timestamp has no zone offset: %q", s)
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp: %q", s)
}

// isoLayout mirrors ISO-8601 with optional sub-second digits.
const isoLayout = "2006-01-02T15:04:05.999999Z07:00"

// FormatTimestamp renders t in ISO-8601 with its own zone.
func FormatTimestamp(t time.Time) string { return t.Format(isoLayout) }
