// Package config loads the ytscribe YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ytscribe/engine"
	"github.com/hazyhaar/ytscribe/idgen"
)

// Config is the top-level configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Popup   PopupConfig   `yaml:"popup"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // plain | headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// ServerConfig controls the HTTP channel.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MaxBody caps request bodies in bytes.
	MaxBody int64 `yaml:"max_body"`
	// RequestTimeout bounds one extraction, settles and polling included.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RateLimit is requests per minute per client on message routes. 0 = off.
	RateLimit int `yaml:"rate_limit"`
	// TabIDs is "random" (tab_ + NanoID) or "sequential" (tab1, tab2, ...).
	TabIDs string `yaml:"tab_ids"`
}

// EngineConfig overrides selectors and waits. Empty fields keep the
// engine's built-in values.
type EngineConfig struct {
	Selectors engine.Selectors `yaml:"selectors"`
	Timing    engine.Timing    `yaml:"timing"`
}

// PopupConfig controls the terminal popup.
type PopupConfig struct {
	// Server is the daemon base URL. Empty: derived from server.addr.
	Server      string        `yaml:"server"`
	CopyConfirm time.Duration `yaml:"copy_confirm"`
}

// PopupURL is the base URL clients use to reach the daemon: popup.server if
// set, else server.addr with a wildcard or empty host mapped to loopback.
// Call it after flag overrides.
func (c *Config) PopupURL() string {
	if c.Popup.Server != "" {
		return c.Popup.Server
	}
	host, port, err := net.SplitHostPort(c.Server.Addr)
	if err != nil {
		return "http://" + c.Server.Addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML and fills defaults. Unknown keys are rejected so that
// a misspelt selector override does not silently fall back.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Server.TabIDs {
	case "random", "sequential":
	default:
		return fmt.Errorf("config: server.tab_ids: want random or sequential, got %q", c.Server.TabIDs)
	}
	return nil
}

// TabIDGen returns the tab ID generator selected by server.tab_ids.
func (c *Config) TabIDGen() idgen.Generator {
	if c.Server.TabIDs == "sequential" {
		return idgen.Sequence("tab")
	}
	return idgen.Prefixed("tab_", idgen.NanoID(8))
}

func (c *Config) applyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8765"
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = 64 * 1024
	}
	if c.Server.TabIDs == "" {
		c.Server.TabIDs = "random"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Popup.CopyConfirm <= 0 {
		c.Popup.CopyConfirm = 2 * time.Second
	}
}
