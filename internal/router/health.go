package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNoAvailableModel is returned when no candidate of a tier is usable.
var ErrNoAvailableModel = errors.New("no available model for tier")

// Availability decides whether a resource id can be used right now.
type Availability interface {
	Available(model string) bool
}

// AvailabilityFunc adapts a function to the Availability interface.
type AvailabilityFunc func(model string) bool

// Available calls f.
func (f AvailabilityFunc) Available(model string) bool {
	return f(model)
}

// AllAvailable accepts every model.
var AllAvailable Availability = AvailabilityFunc(func(string) bool { return true })

// providerKeyEnv maps a provider prefix to the environment variable holding its key.
var providerKeyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"google":     "GEMINI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
}

// EnvCredentialCheck accepts a "provider/model" id when the provider's API
// key variable is set. Unknown providers are rejected.
func EnvCredentialCheck(lookup func(string) (string, bool)) Availability {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return AvailabilityFunc(func(model string) bool {
		provider, _, ok := strings.Cut(model, "/")
		if !ok {
			return false
		}
		env, known := providerKeyEnv[provider]
		if !known {
			return false
		}
		v, set := lookup(env)
		return set && v != ""
	})
}

// AllOf accepts a model only when every check accepts it.
func AllOf(checks ...Availability) Availability {
	return AvailabilityFunc(func(model string) bool {
		for _, c := range checks {
			if !c.Available(model) {
				return false
			}
		}
		return true
	})
}

// ModelState represents the health state of a model.
type ModelState string

const (
	StateHealthy  ModelState = "healthy"
	StateDegraded ModelState = "degraded"
	StateUnknown  ModelState = "unknown"
)

// Error classes reported by ClassifyError.
const (
	ErrQuotaExhausted = "quota_exhausted"
	ErrRateLimited    = "rate_limited"
	ErrTimeout        = "timeout"
	ErrServerError    = "server_error"
	ErrAuthError      = "auth_error"
	ErrModelNotFound  = "model_not_found"
	ErrContextTooLong = "context_too_long"
	ErrUnknown        = "unknown"
)

// ModelHealth tracks the health status of a single model.
type ModelHealth struct {
	State               ModelState     `json:"state"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastFailure         *time.Time     `json:"last_failure,omitempty"`
	LastSuccess         *time.Time     `json:"last_success,omitempty"`
	DegradedAt          *time.Time     `json:"degraded_at,omitempty"`
	TotalRequests       int64          `json:"total_requests"`
	TotalFailures       int64          `json:"total_failures"`
	ErrorTypes          map[string]int `json:"error_types"`
	LastErrorType       string         `json:"last_error_type,omitempty"`
}

// SuccessRate is the share of successful calls, or 1 when none were made.
func (h ModelHealth) SuccessRate() float64 {
	if h.TotalRequests == 0 {
		return 1
	}
	return float64(h.TotalRequests-h.TotalFailures) / float64(h.TotalRequests)
}

// HealthConfig configures the tracker.
type HealthConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // failures before degraded (default: 3)
	CooldownPeriod   time.Duration `json:"cooldown_period"`   // time before a degraded model is retried (default: 5min)
	PersistPath      string        `json:"persist_path"`      // empty disables persistence
}

// DefaultHealthConfig returns sensible defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		CooldownPeriod:   5 * time.Minute,
	}
}

// HealthTracker is an Availability fed by the caller's own resource calls.
// A model becomes unavailable after FailureThreshold consecutive failures
// and is offered again once CooldownPeriod has passed.
type HealthTracker struct {
	mu     sync.RWMutex
	models map[string]*ModelHealth
	cfg    HealthConfig
	logger *slog.Logger
	now    func() time.Time
}

type healthSnapshot struct {
	Models      map[string]*ModelHealth `json:"models"`
	LastUpdated time.Time               `json:"last_updated"`
}

// NewHealthTracker creates a tracker, loading persisted state if present.
func NewHealthTracker(cfg HealthConfig, logger *slog.Logger) *HealthTracker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultHealthConfig().FailureThreshold
	}

	ht := &HealthTracker{
		models: make(map[string]*ModelHealth),
		cfg:    cfg,
		logger: logger.With("component", "health-tracker"),
		now:    time.Now,
	}

	if cfg.PersistPath != "" {
		if err := ht.load(); err != nil {
			// Not fatal - start fresh
			ht.logger.Debug("no existing health state, starting fresh", "error", err)
		}
	}
	return ht
}

func (ht *HealthTracker) getOrCreate(model string) *ModelHealth {
	if h, ok := ht.models[model]; ok {
		return h
	}
	h := &ModelHealth{State: StateUnknown, ErrorTypes: make(map[string]int)}
	ht.models[model] = h
	return h
}

// RecordSuccess records a successful call to model.
func (ht *HealthTracker) RecordSuccess(model string) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	h := ht.getOrCreate(model)
	now := ht.now()
	h.LastSuccess = &now
	h.ConsecutiveFailures = 0
	h.TotalRequests++

	switch h.State {
	case StateDegraded:
		h.State = StateHealthy
		h.DegradedAt = nil
		ht.logger.Info("model recovered", "model", model)
	case StateUnknown:
		h.State = StateHealthy
	}
}

// RecordFailure records a failed call to model. errType is usually the
// result of ClassifyError.
func (ht *HealthTracker) RecordFailure(model, errType string) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	h := ht.getOrCreate(model)
	now := ht.now()
	h.LastFailure = &now
	h.LastErrorType = errType
	h.ConsecutiveFailures++
	h.TotalRequests++
	h.TotalFailures++
	if h.ErrorTypes == nil {
		h.ErrorTypes = make(map[string]int)
	}
	h.ErrorTypes[errType]++

	if h.ConsecutiveFailures >= ht.cfg.FailureThreshold && h.State != StateDegraded {
		h.State = StateDegraded
		h.DegradedAt = &now
		ht.logger.Warn("model degraded",
			"model", model,
			"consecutive_failures", h.ConsecutiveFailures,
			"error_type", errType,
		)
	}
}

// Available implements Availability. Unknown models are assumed healthy.
func (ht *HealthTracker) Available(model string) bool {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	h, ok := ht.models[model]
	if !ok || h.State != StateDegraded {
		return true
	}
	return h.DegradedAt != nil && ht.now().Sub(*h.DegradedAt) > ht.cfg.CooldownPeriod
}

// Status returns a copy of the health record for model.
func (ht *HealthTracker) Status(model string) (ModelHealth, bool) {
	ht.mu.RLock()
	defer ht.mu.RUnlock()
	h, ok := ht.models[model]
	if !ok {
		return ModelHealth{}, false
	}
	return *h, true
}

// DegradedModels returns the models currently marked degraded.
func (ht *HealthTracker) DegradedModels() []string {
	ht.mu.RLock()
	defer ht.mu.RUnlock()
	var out []string
	for id, h := range ht.models {
		if h.State == StateDegraded {
			out = append(out, id)
		}
	}
	return out
}

// Reset marks model healthy again.
func (ht *HealthTracker) Reset(model string) {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	if h, ok := ht.models[model]; ok {
		h.State = StateHealthy
		h.ConsecutiveFailures = 0
		h.DegradedAt = nil
		ht.logger.Info("model manually reset", "model", model)
	}
}

// Persist writes the tracker state to PersistPath. It is a no-op when
// persistence is disabled.
func (ht *HealthTracker) Persist() error {
	if ht.cfg.PersistPath == "" {
		return nil
	}

	ht.mu.RLock()
	data, err := json.MarshalIndent(healthSnapshot{Models: ht.models, LastUpdated: ht.now()}, "", "  ")
	ht.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal health state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ht.cfg.PersistPath), 0o755); err != nil {
		return fmt.Errorf("create health dir: %w", err)
	}
	if err := os.WriteFile(ht.cfg.PersistPath, data, 0o644); err != nil {
		return fmt.Errorf("write health state: %w", err)
	}
	ht.logger.Debug("health state persisted", "path", ht.cfg.PersistPath)
	return nil
}

func (ht *HealthTracker) load() error {
	data, err := os.ReadFile(ht.cfg.PersistPath)
	if err != nil {
		return err
	}
	var snap healthSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse health state: %w", err)
	}
	if snap.Models != nil {
		ht.models = snap.Models
	}
	ht.logger.Debug("health state loaded", "path", ht.cfg.PersistPath, "models", len(ht.models))
	return nil
}

// errorClasses is checked in order; the first class with a matching keyword wins.
var errorClasses = []struct {
	class    string
	keywords []string
}{
	{ErrQuotaExhausted, []string{"quota", "exhausted", "limit exceeded"}},
	{ErrRateLimited, []string{"rate limit", "too many requests", "429"}},
	{ErrTimeout, []string{"timeout", "deadline exceeded", "context canceled"}},
	{ErrAuthError, []string{"401", "403", "unauthorized", "forbidden", "invalid api key"}},
	{ErrModelNotFound, []string{"model not found", "does not exist", "404"}},
	{ErrContextTooLong, []string{"context length", "too long", "max tokens"}},
	{ErrServerError, []string{"500", "502", "503", "504", "internal server error"}},
}

// ClassifyError categorizes a resource-call error for health tracking.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	for _, ec := range errorClasses {
		for _, kw := range ec.keywords {
			if strings.Contains(msg, kw) {
				return ec.class
			}
		}
	}
	return ErrUnknown
}
