package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/i474232898/precip-timelapse/internal/timelapse"
)

// Map surface kinds.
const (
	SurfaceMemory  = "memory"
	SurfaceWebhook = "webhook"
)

type AppConfig struct {
	Port string

	// TickInterval is the pause between two revealed frames.
	TickInterval time.Duration

	TileEndpoint string
	RasterBucket string

	// Location interprets calendar inputs without an explicit offset.
	Location *time.Location

	// MapSurface selects the surface the engine drives ("memory" or "webhook").
	MapSurface        string
	SurfaceWebhookURL string
	SurfaceOpTimeout  time.Duration // per map surface call
	HTTPTimeout       time.Duration // outbound webhook client

	LogLevel  string
	LogFormat string

	// Where the values came from, reported once the logger exists.
	DotEnvLoaded bool
	ConfigFile   string
}

// fileConfig mirrors AppConfig with TOML friendly types.
type fileConfig struct {
	Port              string `toml:"port"`
	TickInterval      string `toml:"tick_interval"`
	TileEndpoint      string `toml:"tile_endpoint"`
	RasterBucket      string `toml:"raster_bucket"`
	Timezone          string `toml:"timezone"`
	MapSurface        string `toml:"map_surface"`
	SurfaceWebhookURL string `toml:"surface_webhook_url"`
	SurfaceOpTimeout  string `toml:"surface_op_timeout"`
	HTTPTimeout       string `toml:"http_timeout"`
	LogLevel          string `toml:"log_level"`
	LogFormat         string `toml:"log_format"`
}

// Load reads configuration with this precedence: environment, then the TOML
// file at path (or $TIMELAPSE_CONFIG), then defaults. An empty path with no
// TIMELAPSE_CONFIG skips the file.
func Load(path string) (*AppConfig, error) {
	dotEnvErr := godotenv.Load()

	if path == "" {
		path = os.Getenv("TIMELAPSE_CONFIG")
	}

	var fc fileConfig
	if path != "" {
		loaded, err := loadFileConfig(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		fc = loaded
	}

	cfg := &AppConfig{DotEnvLoaded: dotEnvErr == nil, ConfigFile: path}
	cfg.Port = getenvDefault("PORT", orDefault(fc.Port, "8080"))
	cfg.TileEndpoint = getenvDefault("TILE_ENDPOINT", orDefault(fc.TileEndpoint, timelapse.DefaultTileEndpoint))
	cfg.RasterBucket = getenvDefault("RASTER_BUCKET", orDefault(fc.RasterBucket, timelapse.DefaultBucket))
	cfg.SurfaceWebhookURL = getenvDefault("SURFACE_WEBHOOK_URL", fc.SurfaceWebhookURL)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", orDefault(fc.LogLevel, "info"))
	cfg.LogFormat = getenvDefault("LOG_FORMAT", orDefault(fc.LogFormat, "json"))

	var err error
	if cfg.TickInterval, err = getenvDuration("TICK_INTERVAL", orDefault(fc.TickInterval, "1s")); err != nil {
		return nil, err
	}
	if cfg.SurfaceOpTimeout, err = getenvDuration("SURFACE_OP_TIMEOUT", orDefault(fc.SurfaceOpTimeout, "5s")); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", orDefault(fc.HTTPTimeout, "10s")); err != nil {
		return nil, err
	}

	tz := getenvDefault("TIMEZONE", orDefault(fc.Timezone, "UTC"))
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.MapSurface = strings.ToLower(getenvDefault("MAP_SURFACE", orDefault(fc.MapSurface, SurfaceMemory)))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It is called by Load and again
// after CLI flag overrides.
func (c *AppConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("invalid TICK_INTERVAL: must be positive, got %s", c.TickInterval)
	}
	switch c.MapSurface {
	case SurfaceMemory:
	case SurfaceWebhook:
		if c.SurfaceWebhookURL == "" {
			return fmt.Errorf("SURFACE_WEBHOOK_URL is required when MAP_SURFACE=%s", SurfaceWebhook)
		}
	default:
		return fmt.Errorf("invalid MAP_SURFACE %q: want %q or %q", c.MapSurface, SurfaceMemory, SurfaceWebhook)
	}
	return nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
