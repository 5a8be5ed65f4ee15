package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Inputs   InputsConfig   `yaml:"inputs" mapstructure:"inputs"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Palette  PaletteConfig  `yaml:"palette" mapstructure:"palette"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Animate  AnimateConfig  `yaml:"animate" mapstructure:"animate"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the working directories.
type PathsConfig struct {
	Raw   string `yaml:"raw" mapstructure:"raw"`
	Clean string `yaml:"clean" mapstructure:"clean"`
	HTML  string `yaml:"html" mapstructure:"html"`
	PNG   string `yaml:"png" mapstructure:"png"`
	Video string `yaml:"video" mapstructure:"video"`
}

// InputsConfig names the source files inside paths.raw. Absolute paths are
// used as given.
type InputsConfig struct {
	Cases      string `yaml:"cases" mapstructure:"cases"`
	Deaths     string `yaml:"deaths" mapstructure:"deaths"`
	Population string `yaml:"population" mapstructure:"population"`
	Boundary   string `yaml:"boundary" mapstructure:"boundary"`
}

// FetchConfig configures source downloads.
type FetchConfig struct {
	CasesURL      string `yaml:"cases_url" mapstructure:"cases_url"`
	DeathsURL     string `yaml:"deaths_url" mapstructure:"deaths_url"`
	PopulationURL string `yaml:"population_url" mapstructure:"population_url"`
	BoundaryURL   string `yaml:"boundary_url" mapstructure:"boundary_url"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// BoundaryConfig names the identifier fields of boundary features.
type BoundaryConfig struct {
	StateField  string `yaml:"state_field" mapstructure:"state_field"`
	CountyField string `yaml:"county_field" mapstructure:"county_field"`
	IDField     string `yaml:"id_field" mapstructure:"id_field"`
}

// MetricsConfig configures the geometry merge.
type MetricsConfig struct {
	// Key is the feature property matched against county FIPS codes.
	Key string `yaml:"key" mapstructure:"key"`
}

// PaletteConfig points at an optional palette override file.
type PaletteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RenderConfig configures page rendering and screenshots.
type RenderConfig struct {
	Width          int     `yaml:"width" mapstructure:"width"`
	Height         int     `yaml:"height" mapstructure:"height"`
	SettleSecs     float64 `yaml:"settle_secs" mapstructure:"settle_secs"`
	NavTimeoutSecs int     `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	Headless       bool    `yaml:"headless" mapstructure:"headless"`
	RemoteURL      string  `yaml:"remote_url" mapstructure:"remote_url"`
	BrowserBin     string  `yaml:"browser_bin" mapstructure:"browser_bin"`
	SkipScreenshot bool    `yaml:"skip_screenshot" mapstructure:"skip_screenshot"`
	Lat            float64 `yaml:"lat" mapstructure:"lat"`
	Lon            float64 `yaml:"lon" mapstructure:"lon"`
	Zoom           float64 `yaml:"zoom" mapstructure:"zoom"`
	Tiles          string  `yaml:"tiles" mapstructure:"tiles"`
	Attribution    string  `yaml:"attribution" mapstructure:"attribution"`
}

// Settle returns the post-load wait as a duration.
func (r RenderConfig) Settle() time.Duration {
	return time.Duration(r.SettleSecs * float64(time.Second))
}

// AnimateConfig configures animation encoding.
type AnimateConfig struct {
	FPS        float64 `yaml:"fps" mapstructure:"fps"`
	Format     string  `yaml:"format" mapstructure:"format"`
	FFmpegPath string  `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
}

// PipelineConfig configures the driver.
type PipelineConfig struct {
	// Start and End bound the timepoints processed (YYYYMMDD, inclusive).
	// Empty means open.
	Start       string   `yaml:"start" mapstructure:"start"`
	End         string   `yaml:"end" mapstructure:"end"`
	Maps        []string `yaml:"maps" mapstructure:"maps"`
	Concurrency int      `yaml:"concurrency" mapstructure:"concurrency"`
	FailFast    bool     `yaml:"fail_fast" mapstructure:"fail_fast"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// InputPath resolves an input file name against paths.raw.
func (c *Config) InputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.Raw, name)
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COVIDMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.raw", "RawData")
	v.SetDefault("paths.clean", "CleanData")
	v.SetDefault("paths.html", "map_html")
	v.SetDefault("paths.png", "map_png")
	v.SetDefault("paths.video", "map_video")
	v.SetDefault("inputs.cases", "covid_confirmed_usafacts.csv")
	v.SetDefault("inputs.deaths", "covid_deaths_usafacts.csv")
	v.SetDefault("inputs.population", "covid_county_population_usafacts.csv")
	v.SetDefault("inputs.boundary", "cb_2019_us_county_500k.zip")
	v.SetDefault("fetch.cases_url", "https://usafactsstatic.blob.core.windows.net/public/data/covid-19/covid_confirmed_usafacts.csv")
	v.SetDefault("fetch.deaths_url", "https://usafactsstatic.blob.core.windows.net/public/data/covid-19/covid_deaths_usafacts.csv")
	v.SetDefault("fetch.population_url", "https://usafactsstatic.blob.core.windows.net/public/data/covid-19/covid_county_population_usafacts.csv")
	v.SetDefault("fetch.boundary_url", "https://www2.census.gov/geo/tiger/GENZ2019/shp/cb_2019_us_county_500k.zip")
	v.SetDefault("fetch.user_agent", "covidmap/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("boundary.state_field", "STATEFP")
	v.SetDefault("boundary.county_field", "COUNTYFP")
	v.SetDefault("boundary.id_field", "FIPS")
	v.SetDefault("metrics.key", "FIPS")
	v.SetDefault("render.width", 1920)
	v.SetDefault("render.height", 1080)
	v.SetDefault("render.settle_secs", 5)
	v.SetDefault("render.nav_timeout_secs", 60)
	v.SetDefault("render.headless", true)
	v.SetDefault("render.lat", 43.0)
	v.SetDefault("render.lon", -100.0)
	v.SetDefault("render.zoom", 4.25)
	v.SetDefault("render.tiles", "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png")
	v.SetDefault("render.attribution", "&copy; OpenStreetMap contributors &copy; CARTO")
	v.SetDefault("animate.fps", 1)
	v.SetDefault("animate.format", "mp4")
	v.SetDefault("animate.ffmpeg_path", "ffmpeg")
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.fail_fast", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string
	need := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	switch mode {
	case "fetch":
		need(c.Paths.Raw != "", "paths.raw is required")
		need(c.Fetch.CasesURL != "", "fetch.cases_url is required")
		need(c.Fetch.DeathsURL != "", "fetch.deaths_url is required")
		need(c.Fetch.PopulationURL != "", "fetch.population_url is required")
		need(c.Fetch.MaxRetries >= 0, "fetch.max_retries must be >= 0")
	case "prepare":
		need(c.Inputs.Boundary != "", "inputs.boundary is required")
		need(c.Paths.Clean != "", "paths.clean is required")
		c.validateBoundary(need)
	case "build", "export":
		c.validateInputs(need)
		need(c.Metrics.Key != "", "metrics.key is required")
		c.validatePipeline(need)
	case "render":
		need(c.Paths.Clean != "", "paths.clean is required")
		c.validateRender(need)
		c.validatePipeline(need)
	case "animate":
		c.validateAnimate(need)
	case "run":
		c.validateInputs(need)
		c.validateBoundary(need)
		need(c.Metrics.Key != "", "metrics.key is required")
		c.validateRender(need)
		c.validateAnimate(need)
		c.validatePipeline(need)
	case "serve":
		need(c.Server.Port > 0, "server.port must be > 0")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: invalid for %s: %s", mode, strings.Join(errs, "; ")))
	}
	return nil
}

func (c *Config) validateInputs(need func(bool, string)) {
	need(c.Inputs.Cases != "", "inputs.cases is required")
	need(c.Inputs.Deaths != "", "inputs.deaths is required")
	need(c.Inputs.Population != "", "inputs.population is required")
	need(c.Paths.Clean != "", "paths.clean is required")
}

func (c *Config) validateBoundary(need func(bool, string)) {
	need(c.Boundary.StateField != "", "boundary.state_field is required")
	need(c.Boundary.CountyField != "", "boundary.county_field is required")
	need(c.Boundary.IDField != "", "boundary.id_field is required")
}

func (c *Config) validateRender(need func(bool, string)) {
	need(c.Paths.HTML != "", "paths.html is required")
	need(c.Paths.PNG != "", "paths.png is required")
	need(c.Render.Width > 0 && c.Render.Height > 0, "render.width and render.height must be > 0")
	need(c.Render.SettleSecs >= 0, "render.settle_secs must be >= 0")
	need(c.Render.Zoom > 0, "render.zoom must be > 0")
}

func (c *Config) validateAnimate(need func(bool, string)) {
	need(c.Paths.PNG != "", "paths.png is required")
	need(c.Paths.Video != "", "paths.video is required")
	need(c.Animate.FPS > 0, "animate.fps must be > 0")
	need(c.Animate.Format == "gif" || c.Animate.Format == "mp4", "animate.format must be gif or mp4")
}

func (c *Config) validatePipeline(need func(bool, string)) {
	need(c.Pipeline.Concurrency >= 1 && c.Pipeline.Concurrency <= 64, "pipeline.concurrency must be between 1 and 64")
	need(validStamp(c.Pipeline.Start), "pipeline.start must be YYYYMMDD")
	need(validStamp(c.Pipeline.End), "pipeline.end must be YYYYMMDD")
	if c.Pipeline.Start != "" && c.Pipeline.End != "" {
		need(c.Pipeline.Start <= c.Pipeline.End, "pipeline.start must not be after pipeline.end")
	}
}

func validStamp(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse("20060102", s)
	return err == nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
