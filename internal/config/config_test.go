package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "RawData", cfg.Paths.Raw)
	assert.Equal(t, "CleanData", cfg.Paths.Clean)
	assert.Equal(t, "map_html", cfg.Paths.HTML)
	assert.Equal(t, "map_png", cfg.Paths.PNG)
	assert.Equal(t, "covid_confirmed_usafacts.csv", cfg.Inputs.Cases)
	assert.Equal(t, "covid_county_population_usafacts.csv", cfg.Inputs.Population)
	assert.Contains(t, cfg.Fetch.BoundaryURL, "www2.census.gov")
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, "STATEFP", cfg.Boundary.StateField)
	assert.Equal(t, "FIPS", cfg.Metrics.Key)
	assert.Equal(t, 1920, cfg.Render.Width)
	assert.Equal(t, 5*time.Second, cfg.Render.Settle())
	assert.True(t, cfg.Render.Headless)
	assert.InDelta(t, 43.0, cfg.Render.Lat, 0.001)
	assert.InDelta(t, -100.0, cfg.Render.Lon, 0.001)
	assert.InDelta(t, 4.25, cfg.Render.Zoom, 0.001)
	assert.InDelta(t, 1.0, cfg.Animate.FPS, 0.001)
	assert.Equal(t, "mp4", cfg.Animate.Format)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.FailFast)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
paths:
  raw: /data/raw
log:
  level: debug
  format: console
render:
  settle_secs: 2.5
pipeline:
  start: "20200401"
  maps: [CovidCaseMap, NewCovidCaseMap]
  concurrency: 4
  fail_fast: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/raw", cfg.Paths.Raw)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 2500*time.Millisecond, cfg.Render.Settle())
	assert.Equal(t, "20200401", cfg.Pipeline.Start)
	assert.Equal(t, []string{"CovidCaseMap", "NewCovidCaseMap"}, cfg.Pipeline.Maps)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.FailFast)
	// Defaults still apply for unset values
	assert.Equal(t, "CleanData", cfg.Paths.Clean)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
animate:
  format: gif
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("COVIDMAP_ANIMATE_FORMAT", "mp4")
	t.Setenv("COVIDMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "mp4", cfg.Animate.Format)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("COVIDMAP_SERVER_PORT", "3000")
	t.Setenv("COVIDMAP_PIPELINE_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("paths: [\n"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInputPath(t *testing.T) {
	cfg := &Config{Paths: PathsConfig{Raw: "RawData"}}
	assert.Equal(t, filepath.Join("RawData", "cases.csv"), cfg.InputPath("cases.csv"))
	assert.Equal(t, "/abs/cases.csv", cfg.InputPath("/abs/cases.csv"))
	assert.Equal(t, "", cfg.InputPath(""))
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidate_DefaultsPassEveryMode(t *testing.T) {
	cfg := validDefaults(t)
	for _, mode := range []string{"fetch", "prepare", "build", "export", "render", "animate", "run", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateBuild_MissingInputs(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Inputs.Cases = ""
	cfg.Inputs.Deaths = ""
	cfg.Metrics.Key = ""

	err := cfg.Validate("build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputs.cases is required")
	assert.Contains(t, err.Error(), "inputs.deaths is required")
	assert.Contains(t, err.Error(), "metrics.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Pipeline.Concurrency = 0
	err := cfg.Validate("build")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.concurrency must be between 1 and 64")

	cfg.Pipeline.Concurrency = 65
	assert.Error(t, cfg.Validate("build"))

	cfg.Pipeline.Concurrency = 64
	assert.NoError(t, cfg.Validate("build"))
}

func TestValidateDateRange(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Pipeline.Start = "2020-04-01"
	err := cfg.Validate("build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.start must be YYYYMMDD")

	cfg.Pipeline.Start = "20200501"
	cfg.Pipeline.End = "20200401"
	err = cfg.Validate("render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be after")

	cfg.Pipeline.End = "20200601"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateAnimate(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Animate.Format = "avi"
	cfg.Animate.FPS = 0

	err := cfg.Validate("animate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "animate.fps must be > 0")
	assert.Contains(t, err.Error(), "animate.format must be gif or mp4")
}

func TestValidateRender(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Render.Width = 0
	cfg.Render.SettleSecs = -1

	err := cfg.Validate("render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render.width and render.height must be > 0")
	assert.Contains(t, err.Error(), "render.settle_secs must be >= 0")
}
