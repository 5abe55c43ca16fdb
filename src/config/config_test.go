package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, cfg.Analysis.GapThreshold)
	assert.Equal(t, "LEGACY_", cfg.Analysis.LegacyPrefix)
	assert.Equal(t, 3, cfg.Collect.Count)
	assert.Equal(t, "logs/wifi_bench.jsonl", cfg.LogPath)
	assert.Equal(t, "JST", cfg.Analysis.Location().String())
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := writeFile(t, "wifibench.yaml", `
log_path: /var/log/bench.jsonl
analysis:
  gap_threshold: 2m
  display_utc_offset_hours: 0
collect:
  ssids: [Home_5G, Home_2G]
  count: 5
export:
  out_dir: out
`)
	env := writeFile(t, ".env", "WIFIBENCH_OUT_DIR=from-dotenv\n")
	t.Setenv("WIFIBENCH_LOG_LEVEL", "debug")
	// registered so the value godotenv sets is restored afterwards
	t.Setenv("WIFIBENCH_OUT_DIR", "")
	os.Unsetenv("WIFIBENCH_OUT_DIR")

	cfg, err := Load(path, env)
	require.NoError(t, err)
	assert.Equal(t, "/var/log/bench.jsonl", cfg.LogPath)
	assert.Equal(t, 2*time.Minute, cfg.Analysis.GapThreshold)
	assert.Equal(t, []string{"Home_5G", "Home_2G"}, cfg.Collect.SSIDs)
	assert.Equal(t, 5, cfg.Collect.Count)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "from-dotenv", cfg.Export.OutDir)
	assert.Equal(t, "UTC+0", cfg.Analysis.Location().String())
	// untouched sections keep their defaults
	assert.Equal(t, ":8080", cfg.Serve.Addr)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeFile(t, "bad.yaml", "collect:\n  count: 0\n")
	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	path = writeFile(t, "bad2.yaml", "logging:\n  level: loud\n")
	_, err = Load(path, "")
	require.Error(t, err)

	path = writeFile(t, "bad3.yaml", "export:\n  s3:\n    enabled: true\n")
	_, err = Load(path, "")
	require.Error(t, err, "enabled s3 sink without endpoint")

	path = writeFile(t, "bad4.yaml", "analysis: [not, a, map]\n")
	_, err = Load(path, "")
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"WIFIBENCH_GAP_THRESHOLD": "90s",
		"WIFIBENCH_SSIDS":         " A , ,B",
		"WIFIBENCH_LOG_JSON":      "true",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, 90*time.Second, cfg.Analysis.GapThreshold)
	assert.Equal(t, []string{"A", "B"}, cfg.Collect.SSIDs)
	assert.True(t, cfg.Logging.JSON)

	env["WIFIBENCH_LOG_JSON"] = "maybe"
	assert.Error(t, Default().applyEnv(lookup))
	env["WIFIBENCH_LOG_JSON"] = ""
	env["WIFIBENCH_GAP_THRESHOLD"] = "soon"
	assert.Error(t, Default().applyEnv(lookup))
}

func TestAnalysisLocation(t *testing.T) {
	_, off := time.Date(2026, 1, 1, 0, 0, 0, 0, Analysis{DisplayUTCOffsetHours: -5}.Location()).Zone()
	assert.Equal(t, -5*3600, off)
}
