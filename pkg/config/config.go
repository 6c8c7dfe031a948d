package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/psantana5/lumirender/pkg/control"
	"github.com/psantana5/lumirender/pkg/framestore"
	"github.com/psantana5/lumirender/pkg/logging"
	"github.com/psantana5/lumirender/pkg/models"
	"github.com/psantana5/lumirender/pkg/render"
	"github.com/psantana5/lumirender/pkg/tracing"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LUMIRENDER_HTTP_ADDR
const EnvPrefix = "LUMIRENDER"

// Config is the full lumirender configuration
type Config struct {
	Log       LogConfig         `mapstructure:"log" yaml:"log"`
	Render    render.Config     `mapstructure:"render" yaml:"render"`
	Scheduler SchedulerConfig   `mapstructure:"scheduler" yaml:"scheduler"`
	Archive   framestore.Config `mapstructure:"archive" yaml:"archive"`
	HTTP      HTTPConfig        `mapstructure:"http" yaml:"http"`
	Tracing   tracing.Config    `mapstructure:"tracing" yaml:"tracing"`
	Control   control.Config    `mapstructure:"control" yaml:"control"`
	Rig       RigConfig         `mapstructure:"rig" yaml:"rig"`
}

// LogConfig selects level, format and sink
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
	Dir   string `mapstructure:"dir" yaml:"dir"` // Empty logs to stdout
}

// SchedulerConfig identifies the scheduler and the devices it renders
type SchedulerConfig struct {
	ID           string   `mapstructure:"id" yaml:"id"`                       // Empty generates a UUID
	OwnedDevices []string `mapstructure:"owned_devices" yaml:"owned_devices"` // Empty owns the whole rig
}

// HTTPConfig configures the control API
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second per client, 0 disables
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key"`           // Required on state-changing requests when set
	APIKeyHash      string        `mapstructure:"api_key_hash" yaml:"api_key_hash"` // bcrypt hash, preferred over api_key
	TLSCert         string        `mapstructure:"tls_cert" yaml:"tls_cert"`
	TLSKey          string        `mapstructure:"tls_key" yaml:"tls_key"`
}

// RigConfig describes the devices and the optional built-in animation
type RigConfig struct {
	Devices   []DeviceConfig  `mapstructure:"devices" yaml:"devices"`
	Animation AnimationConfig `mapstructure:"animation" yaml:"animation"`
}

// DeviceConfig is one light with its initial parameters
type DeviceConfig struct {
	ID     string             `mapstructure:"id" yaml:"id"`
	Params map[string]float64 `mapstructure:"params" yaml:"params"`
}

// AnimationConfig drives the rig in an orbit when enabled
type AnimationConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Period  time.Duration `mapstructure:"period" yaml:"period"`
	Radius  float64       `mapstructure:"radius" yaml:"radius"`
}

// Default returns a configuration that serves a three-light rig on :8090
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Render: render.Config{
			Width:          160,
			Height:         90,
			PreviewSamples: 1,
			RenderSamples:  16,
		},
		Archive: framestore.Config{
			Type:      framestore.TypeNone,
			Directory: "./frames",
			FPS:       framestore.DefaultFPS,
			Path:      "./frames.db",
		},
		HTTP: HTTPConfig{
			Addr:            ":8090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Tracing: tracing.Config{
			ServiceName:    "lumirender",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			OTLPEndpoint:   "localhost:4318",
		},
		Control: control.DefaultConfig(),
		Rig: RigConfig{
			Devices: []DeviceConfig{
				{ID: "key", Params: map[string]float64{"red": 1, "green": 0.85, "blue": 0.7, "intensity": 1, "radius": 0.35}},
				{ID: "fill", Params: map[string]float64{"red": 0.5, "green": 0.6, "blue": 1, "intensity": 0.6, "radius": 0.5}},
				{ID: "back", Params: map[string]float64{"red": 1, "green": 0.3, "blue": 0.3, "intensity": 0.8, "radius": 0.25}},
			},
			Animation: AnimationConfig{
				Enabled: true,
				Period:  4 * time.Second,
				Radius:  0.3,
			},
		},
	}
}

// Load reads path (optional) over the defaults, then applies LUMIRENDER_*
// environment overrides
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key so environment overrides reach
// Unmarshal
func setDefaults(v *viper.Viper, d Config) {
	defaults := map[string]interface{}{
		"log.level":               d.Log.Level,
		"log.json":                d.Log.JSON,
		"log.dir":                 d.Log.Dir,
		"render.width":            d.Render.Width,
		"render.height":           d.Render.Height,
		"render.preview_samples":  d.Render.PreviewSamples,
		"render.render_samples":   d.Render.RenderSamples,
		"render.row_delay_us":     d.Render.RowDelayMicros,
		"scheduler.id":            d.Scheduler.ID,
		"scheduler.owned_devices": d.Scheduler.OwnedDevices,
		"archive.type":            d.Archive.Type,
		"archive.directory":       d.Archive.Directory,
		"archive.fps":             d.Archive.FPS,
		"archive.path":            d.Archive.Path,
		"http.addr":               d.HTTP.Addr,
		"http.read_timeout":       d.HTTP.ReadTimeout,
		"http.write_timeout":      d.HTTP.WriteTimeout,
		"http.shutdown_timeout":   d.HTTP.ShutdownTimeout,
		"http.rate_limit":         d.HTTP.RateLimit,
		"http.rate_burst":         d.HTTP.RateBurst,
		"http.api_key":            d.HTTP.APIKey,
		"http.api_key_hash":       d.HTTP.APIKeyHash,
		"http.tls_cert":           d.HTTP.TLSCert,
		"http.tls_key":            d.HTTP.TLSKey,
		"tracing.enabled":         d.Tracing.Enabled,
		"tracing.service_name":    d.Tracing.ServiceName,
		"tracing.service_version": d.Tracing.ServiceVersion,
		"tracing.environment":     d.Tracing.Environment,
		"tracing.otlp_endpoint":   d.Tracing.OTLPEndpoint,
		"control.rate_hz":         d.Control.RateHz,
		"control.burst":           d.Control.Burst,
		"rig.animation.enabled":   d.Rig.Animation.Enabled,
		"rig.animation.period":    d.Rig.Animation.Period,
		"rig.animation.radius":    d.Rig.Animation.Radius,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	devices := make([]map[string]interface{}, 0, len(d.Rig.Devices))
	for _, dev := range d.Rig.Devices {
		params := make(map[string]interface{}, len(dev.Params))
		for k, p := range dev.Params {
			params[k] = p
		}
		devices = append(devices, map[string]interface{}{"id": dev.ID, "params": params})
	}
	v.SetDefault("rig.devices", devices)
}

// Validate checks that the configuration can start a scheduler
func (c Config) Validate() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("invalid render size %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.PreviewSamples < 1 || c.Render.RenderSamples < 1 {
		return errors.New("render samples must be at least 1")
	}

	switch c.Archive.Type {
	case framestore.TypeNone, "", framestore.TypeMemory:
	case framestore.TypeFile:
		if c.Archive.Directory == "" {
			return fmt.Errorf("%w: archive.directory", framestore.ErrMissingLocation)
		}
		if c.Archive.FPS < 0 {
			return fmt.Errorf("invalid archive fps %d", c.Archive.FPS)
		}
	case framestore.TypeSQLite:
		if c.Archive.Path == "" {
			return fmt.Errorf("%w: archive.path", framestore.ErrMissingLocation)
		}
	default:
		return fmt.Errorf("%w: %q", framestore.ErrUnsupportedStore, c.Archive.Type)
	}

	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if (c.HTTP.TLSCert == "") != (c.HTTP.TLSKey == "") {
		return errors.New("http.tls_cert and http.tls_key must be set together")
	}
	if c.Control.RateHz <= 0 {
		return fmt.Errorf("invalid control rate %v", c.Control.RateHz)
	}
	if c.Rig.Animation.Enabled && c.Rig.Animation.Period <= 0 {
		return errors.New("rig.animation.period must be positive")
	}

	seen := make(map[string]bool, len(c.Rig.Devices))
	for _, d := range c.Rig.Devices {
		if d.ID == "" {
			return errors.New("rig device without id")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate rig device %q", d.ID)
		}
		seen[d.ID] = true
	}
	for _, id := range c.Scheduler.OwnedDevices {
		if !seen[id] {
			return fmt.Errorf("owned device %q is not in the rig", id)
		}
	}
	return nil
}

// BuildRig creates the live rig from the configured devices
func (r RigConfig) BuildRig() *models.DeviceSet {
	rig := models.NewDeviceSet()
	for _, dc := range r.Devices {
		d := models.NewDevice(dc.ID)
		for k, v := range dc.Params {
			d.Params[k] = v
		}
		rig.Add(d)
	}
	return rig
}

// NewLogger builds the logger for component from the log section
func (l LogConfig) NewLogger(component string) (*logging.Logger, error) {
	level := logging.ParseLevel(l.Level)
	if l.Dir == "" {
		return logging.NewLogger(level, l.JSON).WithComponent(component), nil
	}
	logger, err := logging.NewFileLogger(l.Dir, component, level, l.JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger.WithComponent(component), nil
}

// YAML renders the configuration as a config file
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
