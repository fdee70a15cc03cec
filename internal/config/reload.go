package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/clawinfra/smartroute/internal/router"
)

// ReloadResult describes what changed during a config reload.
type ReloadResult struct {
	Changed []string // list of changed fields
	Applied []string // successfully applied
	Skipped []string // require restart
	Errors  []error
}

// restartRequiredFields lists config fields that cannot be hot-reloaded
// and require a full process restart.
var restartRequiredFields = map[string]bool{
	"Server.MetricsAddr": true,
	"PatternsPath":       true,
	"Health":             true,
	"Maintenance":        true,
}

// hotReloadableFields lists fields that can be applied at runtime.
var hotReloadableFields = []string{
	"Routing",
	"Server.LogLevel",
}

// mu protects the Config during concurrent reload operations.
var mu sync.RWMutex

// RLock acquires a read lock on the config.
func RLock() { mu.RLock() }

// RUnlock releases a read lock on the config.
func RUnlock() { mu.RUnlock() }

// Reload re-reads the config from path, diffs against the current config,
// and applies hot-reloadable changes in place. Fields that require a
// restart are logged as skipped.
func (c *Config) Reload(path string) (*ReloadResult, error) {
	newCfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}

	result := &ReloadResult{}

	mu.Lock()
	defer mu.Unlock()

	diffAndApply(c, newCfg, result)

	return result, nil
}

// fieldDiff is one comparable config field. apply copies the new value in
// place and is nil for fields that are never applied at runtime.
type fieldDiff struct {
	name    string
	changed bool
	apply   func()
}

// diffAndApply compares old and new configs, applying hot-reloadable changes.
// Whether a changed field is applied or skipped follows restartRequiredFields
// and hotReloadableFields.
func diffAndApply(old, new *Config, result *ReloadResult) {
	diffs := []fieldDiff{
		{name: "Server.MetricsAddr", changed: old.Server.MetricsAddr != new.Server.MetricsAddr},
		{name: "PatternsPath", changed: old.PatternsPath != new.PatternsPath},
		{name: "Health", changed: old.Health != new.Health},
		{name: "Maintenance", changed: old.Maintenance != new.Maintenance},
		{
			name:    "Server.LogLevel",
			changed: old.Server.LogLevel != new.Server.LogLevel,
			apply:   func() { old.Server.LogLevel = new.Server.LogLevel },
		},
		{
			name:    "Routing",
			changed: !reflect.DeepEqual(old.Routing, new.Routing),
			apply:   func() { old.Routing = new.Routing },
		},
	}

	for _, d := range diffs {
		if !d.changed {
			continue
		}
		result.Changed = append(result.Changed, d.name)

		if IsRestartRequired(d.name) || !slices.Contains(hotReloadableFields, d.name) {
			result.Skipped = append(result.Skipped, d.name+" (requires restart)")
			continue
		}
		if d.apply == nil {
			result.Errors = append(result.Errors, fmt.Errorf("no apply step for hot-reloadable field %s", d.name))
			continue
		}
		d.apply()
		result.Applied = append(result.Applied, d.name)
	}
}

// LogResult logs the reload result at the appropriate levels.
func (r *ReloadResult) LogResult(logger *slog.Logger) {
	if len(r.Changed) == 0 {
		logger.Info("config reload: no changes detected")
		return
	}

	logger.Info("config reload complete",
		"changed", len(r.Changed),
		"applied", len(r.Applied),
		"skipped", len(r.Skipped),
		"errors", len(r.Errors),
	)

	for _, field := range r.Applied {
		logger.Info("config field hot-reloaded", "field", field)
	}

	for _, field := range r.Skipped {
		logger.Warn("config field requires restart", "field", field)
	}

	for _, err := range r.Errors {
		logger.Error("config reload error", "error", err)
	}
}

// IsRestartRequired returns true if the field requires a restart.
func IsRestartRequired(field string) bool {
	return restartRequiredFields[field]
}

// HotReloadableFields returns the list of hot-reloadable field names.
func HotReloadableFields() []string {
	return slices.Clone(hotReloadableFields)
}

// Reloader pushes hot-reloadable changes from a config file into a running
// router and log level.
type Reloader struct {
	path   string
	cfg    *Config
	router *router.Router
	level  *slog.LevelVar
	logger *slog.Logger
}

// NewReloader binds cfg, loaded from path, to r. level may be nil when the
// log level is not adjustable.
func NewReloader(path string, cfg *Config, r *router.Router, level *slog.LevelVar, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		path:   path,
		cfg:    cfg,
		router: r,
		level:  level,
		logger: logger.With("component", "config-watcher"),
	}
}

// Reload re-reads the file and applies the result. The routing section is
// the full desired state, so it replaces the active configuration rather
// than being merged onto it.
func (rl *Reloader) Reload() (*ReloadResult, error) {
	result, err := rl.cfg.Reload(rl.path)
	if err != nil {
		return nil, err
	}

	RLock()
	routing := rl.cfg.RoutingConfig()
	level := ParseLevel(rl.cfg.Server.LogLevel)
	RUnlock()

	if slices.Contains(result.Applied, "Routing") && rl.router != nil {
		rl.router.ReplaceConfig(routing)
	}
	if slices.Contains(result.Applied, "Server.LogLevel") && rl.level != nil {
		rl.level.Set(level)
	}

	result.LogResult(rl.logger)
	return result, nil
}

// OnChange adapts Reload to a watcher callback.
func (rl *Reloader) OnChange() {
	if _, err := rl.Reload(); err != nil {
		rl.logger.Error("config reload failed", "path", rl.path, "error", err)
	}
}
