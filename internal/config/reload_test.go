package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/clawinfra/smartroute/internal/router"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestReloadDetectsChangedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	saveJSON(t, path, cfg)

	cfg2 := DefaultConfig()
	cfg2.Routing.Thresholds = &router.ThresholdsOverride{MidToPremium: router.Ptr(80.0)}
	saveJSON(t, path, cfg2)

	result, err := cfg.Reload(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if !slices.Contains(result.Changed, "Routing") {
		t.Errorf("expected Routing in changed, got %v", result.Changed)
	}
	if !slices.Contains(result.Applied, "Routing") {
		t.Errorf("expected Routing in applied, got %v", result.Applied)
	}
	if got := cfg.RoutingConfig().Thresholds.MidToPremium; got != 80 {
		t.Errorf("expected routing to be updated, got midToPremium %f", got)
	}
}

func TestReloadHotApplySupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	cfg2 := DefaultConfig()
	cfg2.Server.LogLevel = "debug"
	if err := cfg2.Save(path); err != nil {
		t.Fatal(err)
	}

	result, err := cfg.Reload(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !slices.Contains(result.Applied, "Server.LogLevel") {
		t.Errorf("expected Server.LogLevel in applied, got %v", result.Applied)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("expected logLevel debug, got %s", cfg.Server.LogLevel)
	}
}

func TestReloadRestartRequiredFieldsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	saveJSON(t, path, cfg)

	cfg2 := DefaultConfig()
	cfg2.Server.MetricsAddr = ":9999"
	cfg2.Health.FailureThreshold = 10
	saveJSON(t, path, cfg2)

	result, err := cfg.Reload(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	for _, want := range []string{"Server.MetricsAddr (requires restart)", "Health (requires restart)"} {
		if !slices.Contains(result.Skipped, want) {
			t.Errorf("expected %q in skipped, got %v", want, result.Skipped)
		}
	}
	if cfg.Server.MetricsAddr != "" || cfg.Health.FailureThreshold != 3 {
		t.Errorf("restart-only fields must not change in place, got %+v %+v", cfg.Server, cfg.Health)
	}
}

func TestReloadNoChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	saveJSON(t, path, cfg)

	result, err := cfg.Reload(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if len(result.Changed) != 0 {
		t.Errorf("expected no changes, got %v", result.Changed)
	}
}

func TestReloadMultipleFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	saveJSON(t, path, cfg)

	// patterns path (restart), log level (hot), routing (hot)
	cfg2 := DefaultConfig()
	cfg2.PatternsPath = "/etc/smartroute/patterns.yaml"
	cfg2.Server.LogLevel = "warn"
	cfg2.Routing.Debug = router.Ptr(true)
	saveJSON(t, path, cfg2)

	result, err := cfg.Reload(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if len(result.Changed) != 3 {
		t.Errorf("expected 3 changes, got %d: %v", len(result.Changed), result.Changed)
	}
	if len(result.Applied) != 2 {
		t.Errorf("expected 2 applied, got %d: %v", len(result.Applied), result.Applied)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected 1 skipped, got %d: %v", len(result.Skipped), result.Skipped)
	}
}

func TestReloadClassificationFollowsFieldTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	saveJSON(t, path, cfg)

	cfg2 := DefaultConfig()
	cfg2.Server.MetricsAddr = ":9100"
	cfg2.Server.LogLevel = "debug"
	cfg2.PatternsPath = "/etc/smartroute/patterns.yaml"
	cfg2.Health.Cooldown = "1m"
	cfg2.Maintenance.ReportStats = "@hourly"
	cfg2.Routing.Debug = router.Ptr(true)
	saveJSON(t, path, cfg2)

	result, err := cfg.Reload(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if len(result.Changed) != 6 || len(result.Errors) != 0 {
		t.Fatalf("expected 6 changes and no errors, got %v %v", result.Changed, result.Errors)
	}
	for _, field := range result.Changed {
		applied := slices.Contains(result.Applied, field)
		skipped := slices.Contains(result.Skipped, field+" (requires restart)")
		if IsRestartRequired(field) != skipped {
			t.Errorf("%s: skipped=%v, restart required=%v", field, skipped, IsRestartRequired(field))
		}
		if slices.Contains(HotReloadableFields(), field) != applied {
			t.Errorf("%s: applied=%v, hot-reloadable=%v", field, applied, !applied)
		}
	}
}

func TestReloadBadFile(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.Reload("/nonexistent/path.json"); err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestReloadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{invalid json"), 0644)

	cfg := DefaultConfig()
	if _, err := cfg.Reload(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestIsRestartRequired(t *testing.T) {
	if !IsRestartRequired("Server.MetricsAddr") {
		t.Error("Server.MetricsAddr should require restart")
	}
	if !IsRestartRequired("PatternsPath") {
		t.Error("PatternsPath should require restart")
	}
	if !IsRestartRequired("Maintenance") {
		t.Error("Maintenance should require restart")
	}
	if IsRestartRequired("Routing") {
		t.Error("Routing should not require restart")
	}
}

func TestHotReloadableFields(t *testing.T) {
	fields := HotReloadableFields()
	if !slices.Contains(fields, "Routing") {
		t.Errorf("expected Routing in hot-reloadable fields, got %v", fields)
	}
	fields[0] = "mutated"
	if HotReloadableFields()[0] == "mutated" {
		t.Error("HotReloadableFields should return a copy")
	}
}

func TestLogResult(t *testing.T) {
	logger := newTestLogger()

	r := &ReloadResult{}
	r.LogResult(logger) // should not panic

	r2 := &ReloadResult{
		Changed: []string{"Routing", "Server.MetricsAddr"},
		Applied: []string{"Routing"},
		Skipped: []string{"Server.MetricsAddr (requires restart)"},
	}
	r2.LogResult(logger) // should not panic
}

func TestReloaderAppliesToRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	saveJSON(t, path, cfg)

	r := router.New(cfg.Routing, newTestLogger())
	level := new(slog.LevelVar)
	rl := NewReloader(path, cfg, r, level, newTestLogger())

	cfg2 := DefaultConfig()
	cfg2.Server.LogLevel = "debug"
	cfg2.Routing.Thresholds = &router.ThresholdsOverride{CheapToMid: router.Ptr(20.0)}
	saveJSON(t, path, cfg2)

	if _, err := rl.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := r.Config().Thresholds.CheapToMid; got != 20 {
		t.Errorf("expected router cheapToMid 20, got %f", got)
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", level.Level())
	}
}

func TestReloaderReplacesRatherThanMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.Routing.Weights = &router.WeightsOverride{CodeBonus: router.Ptr(40.0)}
	saveJSON(t, path, cfg)

	r := router.New(cfg.Routing, newTestLogger())
	rl := NewReloader(path, cfg, r, nil, newTestLogger())

	// The file no longer customises weights, so the default comes back.
	cfg2 := DefaultConfig()
	cfg2.Routing.Debug = router.Ptr(true)
	saveJSON(t, path, cfg2)

	if _, err := rl.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	got := r.Config()
	if got.Weights.CodeBonus != 25 {
		t.Errorf("expected default code bonus after replace, got %f", got.Weights.CodeBonus)
	}
	if !got.Debug {
		t.Error("expected debug enabled from file")
	}
}

func TestReloaderOnChangeSurvivesBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{"), 0644)

	r := router.New(router.ConfigOverride{}, newTestLogger())
	rl := NewReloader(path, DefaultConfig(), r, nil, newTestLogger())
	rl.OnChange() // logs, does not panic

	if got := r.Config(); got.Thresholds.CheapToMid != 35 {
		t.Errorf("router config should be untouched, got %+v", got.Thresholds)
	}
}

func saveJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
