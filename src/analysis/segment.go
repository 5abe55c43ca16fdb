package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
)

// DefaultGapThreshold separates legacy runs: a silence longer than this starts a new run.
const DefaultGapThreshold = 300 * time.Second

// DefaultLegacyPrefix prefixes synthesized run ids.
const DefaultLegacyPrefix = "LEGACY_"

// legacyTagLayout renders the start of a legacy run at second precision.
const legacyTagLayout = "20060102_150405"

// SegmentOptions tunes run segmentation. Zero values fall back to the defaults.
type SegmentOptions struct {
	GapThreshold time.Duration
	LegacyPrefix string
	Location     *time.Location // zone used to render synthesized ids
}

func (o SegmentOptions) withDefaults() SegmentOptions {
	if o.GapThreshold <= 0 {
		o.GapThreshold = DefaultGapThreshold
	}
	if o.LegacyPrefix == "" {
		o.LegacyPrefix = DefaultLegacyPrefix
	}
	if o.Location == nil {
		o.Location = DisplayZone
	}
	return o
}

// Run is one measurement session. Samples are in chronological order.
type Run struct {
	ID      string
	Legacy  bool // true when the id was synthesized
	Samples []Sample
}

// Start returns the earliest member timestamp.
func (r *Run) Start() time.Time { return r.Samples[0].Timestamp }

// End returns the latest member timestamp.
func (r *Run) End() time.Time { return r.Samples[len(r.Samples)-1].Timestamp }

// Len returns the number of member samples.
func (r *Run) Len() int { return len(r.Samples) }

// Networks returns the sorted distinct network ids of the run.
func (r *Run) Networks() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range r.Samples {
		if _, ok := seen[s.NetworkID]; ok {
			continue
		}
		seen[s.NetworkID] = struct{}{}
		out = append(out, s.NetworkID)
	}
	sort.Strings(out)
	return out
}

// AssignRunIDs returns the run id of every sample (same index). samples must be in
// ascending time order, as produced by Normalize.
//
// Explicit ids pass through verbatim. Legacy samples are clustered on the timeline shared
// with explicit samples: a new legacy run opens when there is no previous sample, when the
// gap to the previous sample of either kind is strictly greater than the threshold, or when
// no legacy run is open yet. A synthesized id never equals an explicit id or another legacy
// run's id; clashes get a numeric suffix.
func AssignRunIDs(samples []Sample, opts SegmentOptions) []string {
	opts = opts.withDefaults()
	ids := make([]string, len(samples))
	explicit := map[string]bool{}
	for _, s := range samples {
		if s.RunID != "" {
			explicit[s.RunID] = true
		}
	}
	used := map[string]bool{}
	var prev time.Time
	havePrev := false
	openLegacy := ""
	for i, s := range samples {
		if s.RunID != "" {
			ids[i] = s.RunID
			prev, havePrev = s.Timestamp, true
			continue
		}
		if !havePrev || s.Timestamp.Sub(prev) > opts.GapThreshold || openLegacy == "" {
			openLegacy = uniqueLegacyID(opts.LegacyPrefix+s.Timestamp.In(opts.Location).Format(legacyTagLayout), explicit, used)
			used[openLegacy] = true
			logging.Debugf("[segment] opened legacy run %s at line %d", openLegacy, s.Line)
		}
		ids[i] = openLegacy
		prev, havePrev = s.Timestamp, true
	}
	return ids
}

// uniqueLegacyID returns base, or base_2, base_3, ... when base is already an explicit id
// anywhere in the log or an earlier legacy run started within the same second.
func uniqueLegacyID(base string, explicit, used map[string]bool) string {
	id := base
	for n := 2; explicit[id] || used[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

type runKey struct {
	legacy bool
	id     string
}

// Segment groups samples into runs. Runs are returned in order of first appearance, which
// for time-sorted input is ascending start time.
func Segment(samples []Sample, opts SegmentOptions) []*Run {
	ids := AssignRunIDs(samples, opts)
	byKey := map[runKey]*Run{}
	var order []*Run
	for i, s := range samples {
		key := runKey{legacy: s.RunID == "", id: ids[i]}
		run, ok := byKey[key]
		if !ok {
			run = &Run{ID: key.id, Legacy: key.legacy}
			byKey[key] = run
			order = append(order, run)
		}
		run.Samples = append(run.Samples, s)
	}
	return order
}
