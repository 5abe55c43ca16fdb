// Package validate checks a raw benchmark log against the expected band of each network.
// It reads the log independently of the aggregation engine and never alters it.
package validate

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

// RequiredFields must be present in every record written by the collector.
var RequiredFields = []string{
	"timestamp", "ssid", "rssi", "noise", "mcs_index", "channel", "band",
	"download_mbps", "upload_mbps", "ping_ms",
}

var numericFields = []string{"rssi", "noise", "mcs_index", "channel", "download_mbps", "upload_mbps", "ping_ms"}

const unknownSSID = "<unknown>"

// BandMap maps a network name to the band it is expected to use.
type BandMap map[string]string

// LoadBandMap reads a JSON object of ssid -> band.
func LoadBandMap(fsys afero.Fs, path string) (BandMap, error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read band map: %w", err)
	}
	var m BandMap
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse band map %s: %w", path, err)
	}
	for ssid, band := range m {
		if !types.IsKnownBand(band) {
			return nil, fmt.Errorf("band map %s: %q has unknown band %q (want one of %s)",
				path, ssid, band, strings.Join(types.KnownBands, ", "))
		}
	}
	return m, nil
}

// Issue is one problem found on one line.
type Issue struct {
	Line    int
	Message string
}

func (i Issue) Error() string { return fmt.Sprintf("line %d: %s", i.Line, i.Message) }

// Result summarizes a validation pass.
type Result struct {
	Path   string
	Total  int            // non-blank lines
	Counts map[string]int // records per ssid
	Issues []Issue
}

// OK reports whether no issue was found.
func (r *Result) OK() bool { return len(r.Issues) == 0 }

// Err returns every issue as one error, or nil.
func (r *Result) Err() error {
	var merr *multierror.Error
	for _, is := range r.Issues {
		merr = multierror.Append(merr, is)
	}
	return merr.ErrorOrNil()
}

// SSIDs returns the networks seen, sorted.
func (r *Result) SSIDs() []string {
	out := make([]string, 0, len(r.Counts))
	for s := range r.Counts {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Validate checks every line of the log at logPath.
func Validate(fsys afero.Fs, logPath string, bandMap BandMap) (*Result, error) {
	f, err := fsys.Open(logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", analysis.ErrLogNotFound, logPath)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	res := &Result{Path: logPath, Counts: map[string]int{}}
	reader := bufio.NewReader(f)
	lineNo := 0
	for {
		line, rerr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			res.checkLine(lineNo, line, bandMap)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("read log: %w", rerr)
		}
	}
	return res, nil
}

func (r *Result) checkLine(lineNo int, line []byte, bandMap BandMap) {
	line = []byte(strings.TrimSpace(string(line)))
	if len(line) == 0 {
		return
	}
	r.Total++
	var rec map[string]any
	if err := json.Unmarshal(line, &rec); err != nil {
		r.add(lineNo, "invalid JSON: %v", err)
		return
	}
	ssid := unknownSSID
	if v, ok := rec["ssid"]; ok {
		ssid = fmt.Sprint(v)
	}
	r.Counts[ssid]++

	missing := false
	for _, field := range RequiredFields {
		if _, ok := rec[field]; !ok {
			r.add(lineNo, "missing required field %q", field)
			missing = true
		}
	}
	if missing {
		return
	}

	expected, known := bandMap[ssid]
	if !known {
		r.add(lineNo, "ssid %q is not in the band map", ssid)
	} else if band, _ := rec["band"].(string); band != expected {
		r.add(lineNo, "ssid %q: band mismatch (expected %s, got %s)", ssid, expected, describe(rec["band"]))
	}
	for _, field := range numericFields {
		if _, ok := rec[field].(float64); !ok {
			r.add(lineNo, "%q is not numeric: %s", field, describe(rec[field]))
		}
	}
}

func (r *Result) add(line int, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Line: line, Message: fmt.Sprintf(format, args...)})
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Render prints the per-network counts and the issues found.
func (r *Result) Render(w io.Writer, bandMap BandMap) {
	fmt.Fprintf(w, "Validated %s (%d records)\n", r.Path, r.Total)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"SSID", "Records", "Expected band"})
	for _, ssid := range r.SSIDs() {
		expected, ok := bandMap[ssid]
		if !ok {
			expected = "?"
		}
		table.Append([]string{ssid, fmt.Sprint(r.Counts[ssid]), expected})
	}
	table.Render()
	if r.OK() {
		fmt.Fprintln(w, "[OK] all records valid")
		return
	}
	fmt.Fprintf(w, "[NG] %d problems found:\n", len(r.Issues))
	for _, is := range r.Issues {
		fmt.Fprintf(w, "  %s\n", is.Error())
	}
}
