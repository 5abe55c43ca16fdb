package types

// Band labels written by the collector and expected by the validator.
const (
	Band24GHz = "2.4GHz"
	Band5GHz  = "5GHz"
	Band6GHz  = "6GHz"
)

// KnownBands lists the band labels a record may carry.
var KnownBands = []string{Band24GHz, Band5GHz, Band6GHz}

// IsKnownBand reports whether b is one of KnownBands.
func IsKnownBand(b string) bool {
	for _, k := range KnownBands {
		if k == b {
			return true
		}
	}
	return false
}

// Record is one JSONL line of the benchmark log. The collector writes it and the analysis
// package decodes it. Numeric fields are pointers so an explicit null (or a missing key)
// stays distinguishable from zero.
type Record struct {
	Timestamp string `json:"timestamp"`
	SSID      string `json:"ssid"`
	// NetworkID is accepted as an alias for SSID on input; the collector never writes it.
	NetworkID string `json:"network_id,omitempty"`
	RunID     string `json:"run_id,omitempty"` // absent in legacy logs

	RSSI     *float64 `json:"rssi"`
	Noise    *float64 `json:"noise"`
	MCSIndex *float64 `json:"mcs_index"`
	Channel  *float64 `json:"channel"`
	Band     *string  `json:"band"`

	DownloadMbps *float64 `json:"download_mbps"`
	UploadMbps   *float64 `json:"upload_mbps"`
	PingMs       *float64 `json:"ping_ms"`
}

// Network returns the network identifier, preferring ssid over the network_id alias.
func (r *Record) Network() string {
	if r.SSID != "" {
		return r.SSID
	}
	return r.NetworkID
}

// PhysicalMetrics is what the radio metrics source reports; every field is independently nullable.
type PhysicalMetrics struct {
	RSSI     *int    `json:"rssi"`
	Noise    *int    `json:"noise"`
	MCSIndex *int    `json:"mcs_index"`
	Channel  *int    `json:"channel"`
	Band     *string `json:"band"`
}

// SpeedMetrics is the result of one throughput probe.
type SpeedMetrics struct {
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
	PingMs       float64 `json:"ping_ms"`
}

// Float returns a pointer to v, handy when building records.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// IntToFloat converts an optional int into an optional float64.
func IntToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
