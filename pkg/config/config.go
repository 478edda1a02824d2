// Package config loads pdaviz settings from a TOML file.
//
// The file lives at $XDG_CONFIG_HOME/pdaviz/config.toml (falling back to
// ~/.config/pdaviz/config.toml). Every key is optional; [Default] supplies
// the values of a missing file or key, and command-line flags override both.
//
//	[matcher]
//	url = "http://localhost:5000"
//	timeout = "10s"
//
//	[watch]
//	debounce = "500ms"
//
//	[view]
//	width = 1280
//	height = 800
//	control_bar_height = 50
//	padding = 30
//	follow_pattern = true
//	follow_code = true
//	placer = "layered"
//
//	[cache]
//	backend = "file"
//	ttl = "168h"
//
//	[server]
//	addr = "127.0.0.1:8080"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	pderrors "github.com/matzehuels/pdaviz/pkg/errors"
)

// appName names the configuration directory.
const appName = "pdaviz"

// Placer names accepted in [View].
const (
	PlacerLayered  = "layered"
	PlacerGraphviz = "graphviz"
)

// Cache backend names accepted in [Cache].
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Config is the complete configuration.
type Config struct {
	Matcher Matcher `toml:"matcher"`
	Watch   Watch   `toml:"watch"`
	View    View    `toml:"view"`
	Cache   Cache   `toml:"cache"`
	Server  Server  `toml:"server"`

	// Path is the file the configuration was read from, if any.
	Path string `toml:"-"`
}

// Matcher configures the matcher client.
type Matcher struct {
	URL         string   `toml:"url"`
	Timeout     Duration `toml:"timeout"`
	CodeLang    string   `toml:"code_lang"`
	PatternLang string   `toml:"pattern_lang"`
}

// Watch configures source file watching.
type Watch struct {
	Debounce Duration `toml:"debounce"`
}

// View configures the graph views.
type View struct {
	Width            float64 `toml:"width"`
	Height           float64 `toml:"height"`
	ControlBarHeight float64 `toml:"control_bar_height"`
	Padding          float64 `toml:"padding"`
	FollowPattern    bool    `toml:"follow_pattern"`
	FollowCode       bool    `toml:"follow_code"`
	Placer           string  `toml:"placer"`
	EdgeLabels       bool    `toml:"edge_labels"`
}

// Cache configures the rendered artifact cache.
type Cache struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	TTL       Duration `toml:"ttl"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	MongoURI  string   `toml:"mongo_uri"`
	MongoDB   string   `toml:"mongo_db"`
}

// Server configures the live view server.
type Server struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Matcher: Matcher{
			URL:         "http://localhost:5000",
			Timeout:     Duration{10 * time.Second},
			CodeLang:    "python",
			PatternLang: "pytterns",
		},
		Watch: Watch{Debounce: Duration{500 * time.Millisecond}},
		View: View{
			Width:            1280,
			Height:           800,
			ControlBarHeight: 50,
			Padding:          30,
			FollowPattern:    true,
			FollowCode:       true,
			Placer:           PlacerLayered,
		},
		Cache: Cache{
			Backend: BackendFile,
			TTL:     Duration{7 * 24 * time.Hour},
			MongoDB: "pdaviz",
		},
		Server: Server{Addr: "127.0.0.1:8080"},
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads path over the defaults. An empty path reads the default
// location, where a missing file is not an error; an explicit path must
// exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if err := pderrors.ValidateURL(c.Matcher.URL); err != nil {
		return fmt.Errorf("matcher.url: %w", err)
	}
	if c.Matcher.Timeout.Duration <= 0 {
		return fmt.Errorf("matcher.timeout must be positive")
	}
	if c.Watch.Debounce.Duration < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if c.View.Width <= 0 || c.View.Height <= 0 {
		return fmt.Errorf("view.width and view.height must be positive")
	}
	if c.View.ControlBarHeight < 0 || c.View.Padding < 0 {
		return fmt.Errorf("view.control_bar_height and view.padding must not be negative")
	}
	if !slices.Contains([]string{PlacerLayered, PlacerGraphviz}, c.View.Placer) {
		return fmt.Errorf("view.placer: %q (must be one of: layered, graphviz)", c.View.Placer)
	}
	if !slices.Contains([]string{BackendFile, BackendRedis, BackendMongo, BackendNone}, c.Cache.Backend) {
		return fmt.Errorf("cache.backend: %q (must be one of: file, redis, mongo, none)", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required for the redis backend")
	}
	if c.Cache.Backend == BackendMongo && c.Cache.MongoURI == "" {
		return fmt.Errorf("cache.mongo_uri is required for the mongo backend")
	}
	return nil
}

// Write encodes c as TOML to path, creating parent directories.
func Write(c Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
