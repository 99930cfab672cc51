// Package config loads and live-reloads this service's YAML
// configuration (yaml.v3 struct tags, fsnotify watch-and-reload,
// sync.RWMutex-guarded live config). Per-camera/detection/plugin
// sections are dropped: this service's surface is a single HTTP API
// in front of an existing recording database, not a capture pipeline
// owner.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/nightwatch-nvr/nightwatch/internal/eventbus"
	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

// Config is the service's runtime configuration.
type Config struct {
	Listen                          string             `yaml:"listen"`
	DatabasePath                    string             `yaml:"database_path"`
	UIDir                           string             `yaml:"ui_dir"`
	TrustForwardHeaders             bool               `yaml:"trust_forward_headers"`
	TimeZoneName                    string             `yaml:"time_zone_name"`
	AllowUnauthenticatedPermissions *nvrdb.Permissions `yaml:"allow_unauthenticated_permissions,omitempty"`
	MetricsListen                   string             `yaml:"metrics_listen"`
	NATS                            eventbus.Config    `yaml:"nats"`
	Logging                         LoggingConfig      `yaml:"logging"`

	mu       sync.RWMutex    `yaml:"-"`
	path     string          `yaml:"-"`
	watchers []func(*Config) `yaml:"-"`
}

// LoggingConfig holds structured-logging settings. Logging is an
// ambient concern, not a feature any non-goal excludes.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses path, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.path = path
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.TimeZoneName == "" {
		c.TimeZoneName = "UTC"
	}
	if c.MetricsListen == "" {
		c.MetricsListen = ":9101"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Snapshot returns a copy of the config safe to read without holding
// the caller's own lock.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	cp.watchers = nil
	return cp
}

// OnChange registers fn to run after every successful reload.
func (c *Config) OnChange(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Watch starts an fsnotify watch on the config file and reloads it,
// live, on every write event, after a fixed 100ms pause; successive
// writes are not coalesced.
func (c *Config) Watch(logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	c.mu.RLock()
	path := c.path
	c.mu.RUnlock()
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Write == fsnotify.Write {
					time.Sleep(100 * time.Millisecond)
					c.reload(logger)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("config watch error", "error", err)
			}
		}
	}()
	return nil
}

// reload re-parses the config file and applies only the fields safe to
// change live (ui dir, time zone name, unauthenticated permissions,
// logging level/format); database path, listen address, and the
// metrics listen address require a restart and are logged and ignored
// if they differ on disk.
func (c *Config) reload(logger *slog.Logger) {
	c.mu.RLock()
	path := c.path
	c.mu.RUnlock()

	next, err := Load(path)
	if err != nil {
		logger.Error("config reload failed", "error", err)
		return
	}

	c.mu.Lock()
	if c.Listen != next.Listen {
		logger.Warn("listen address changed on disk, ignored, restart required",
			"old", c.Listen, "new", next.Listen)
	}
	if c.DatabasePath != next.DatabasePath {
		logger.Warn("database_path changed on disk, ignored, restart required",
			"old", c.DatabasePath, "new", next.DatabasePath)
	}
	if c.MetricsListen != next.MetricsListen {
		logger.Warn("metrics_listen changed on disk, ignored, restart required",
			"old", c.MetricsListen, "new", next.MetricsListen)
	}
	c.UIDir = next.UIDir
	c.TimeZoneName = next.TimeZoneName
	c.AllowUnauthenticatedPermissions = next.AllowUnauthenticatedPermissions
	c.Logging = next.Logging
	watchers := c.watchers
	c.mu.Unlock()

	logger.Info("configuration reloaded")
	for _, fn := range watchers {
		fn(c)
	}
}
