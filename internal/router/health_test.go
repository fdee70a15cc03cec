package router

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(cfg HealthConfig) (*HealthTracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ht := NewHealthTracker(cfg, newTestLogger())
	ht.now = clock.now
	return ht, clock
}

func TestHealthTracker_RecordSuccess(t *testing.T) {
	ht, _ := newTestTracker(DefaultHealthConfig())
	ht.RecordSuccess("model-a")

	h, ok := ht.Status("model-a")
	if !ok {
		t.Fatal("model-a should exist")
	}
	if h.State != StateHealthy {
		t.Errorf("expected healthy, got %s", h.State)
	}
	if h.TotalRequests != 1 {
		t.Errorf("expected 1 request, got %d", h.TotalRequests)
	}
	if h.SuccessRate() != 1.0 {
		t.Errorf("expected 100%% success rate, got %f", h.SuccessRate())
	}
}

func TestHealthTracker_DegradesAfterThreshold(t *testing.T) {
	cfg := DefaultHealthConfig()
	cfg.FailureThreshold = 3
	ht, _ := newTestTracker(cfg)

	ht.RecordFailure("model-a", ErrQuotaExhausted)
	ht.RecordFailure("model-a", ErrQuotaExhausted)
	if !ht.Available("model-a") {
		t.Error("should stay available after 2 failures (threshold 3)")
	}

	ht.RecordFailure("model-a", ErrQuotaExhausted)
	h, _ := ht.Status("model-a")
	if h.State != StateDegraded {
		t.Errorf("expected degraded after 3 failures, got %s", h.State)
	}
	if h.ErrorTypes[ErrQuotaExhausted] != 3 {
		t.Errorf("expected 3 quota errors, got %d", h.ErrorTypes[ErrQuotaExhausted])
	}
	if ht.Available("model-a") {
		t.Error("degraded model should be unavailable")
	}
	if got := ht.DegradedModels(); len(got) != 1 || got[0] != "model-a" {
		t.Errorf("expected [model-a] degraded, got %v", got)
	}
}

func TestHealthTracker_CooldownReadmits(t *testing.T) {
	cfg := DefaultHealthConfig()
	cfg.FailureThreshold = 1
	cfg.CooldownPeriod = time.Minute
	ht, clock := newTestTracker(cfg)

	ht.RecordFailure("model-a", ErrTimeout)
	if ht.Available("model-a") {
		t.Fatal("expected unavailable right after degrading")
	}
	clock.advance(2 * time.Minute)
	if !ht.Available("model-a") {
		t.Error("expected model to be retried after cooldown")
	}
}

func TestHealthTracker_RecoveryAfterSuccess(t *testing.T) {
	cfg := DefaultHealthConfig()
	cfg.FailureThreshold = 2
	ht, _ := newTestTracker(cfg)

	ht.RecordFailure("model-a", ErrServerError)
	ht.RecordFailure("model-a", ErrServerError)
	ht.RecordSuccess("model-a")

	h, _ := ht.Status("model-a")
	if h.State != StateHealthy || h.ConsecutiveFailures != 0 {
		t.Errorf("expected recovery, got %+v", h)
	}
	if got := h.SuccessRate(); !approxEqual(got, 1.0/3) {
		t.Errorf("expected success rate 1/3, got %f", got)
	}
}

func TestHealthTracker_Reset(t *testing.T) {
	cfg := DefaultHealthConfig()
	cfg.FailureThreshold = 1
	ht, _ := newTestTracker(cfg)

	ht.RecordFailure("model-a", ErrAuthError)
	ht.Reset("model-a")
	if !ht.Available("model-a") {
		t.Error("expected model available after reset")
	}
}

func TestHealthTracker_UnknownModelAvailable(t *testing.T) {
	ht, _ := newTestTracker(DefaultHealthConfig())
	if !ht.Available("never-seen") {
		t.Error("unknown models are assumed healthy")
	}
}

func TestHealthTracker_Persistence(t *testing.T) {
	cfg := DefaultHealthConfig()
	cfg.FailureThreshold = 1
	cfg.PersistPath = filepath.Join(t.TempDir(), "state", "health.json")

	ht, _ := newTestTracker(cfg)
	ht.RecordFailure("model-a", ErrRateLimited)
	if err := ht.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if _, err := os.Stat(cfg.PersistPath); err != nil {
		t.Fatalf("expected state file: %v", err)
	}

	reloaded := NewHealthTracker(cfg, newTestLogger())
	h, ok := reloaded.Status("model-a")
	if !ok || h.State != StateDegraded || h.LastErrorType != ErrRateLimited {
		t.Errorf("expected persisted degraded state, got %+v ok=%v", h, ok)
	}
}

func TestHealthTracker_PersistDisabled(t *testing.T) {
	ht, _ := newTestTracker(DefaultHealthConfig())
	if err := ht.Persist(); err != nil {
		t.Errorf("expected no-op without a path, got %v", err)
	}
}

func TestResolveModelWithHealthTracker(t *testing.T) {
	cfg := DefaultHealthConfig()
	cfg.FailureThreshold = 1
	ht, _ := newTestTracker(cfg)
	r := New(ConfigOverride{}, newTestLogger())

	ht.RecordFailure("anthropic/claude-sonnet-4-5", ErrServerError)
	m, err := r.ResolveModel(TierMid, ht)
	if err != nil || m != "openai/gpt-4o" {
		t.Errorf("expected fallback openai/gpt-4o, got %s, %v", m, err)
	}
}

func TestEnvCredentialCheck(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "sk-test", "ANTHROPIC_API_KEY": ""}
	check := EnvCredentialCheck(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	tests := []struct {
		model string
		want  bool
	}{
		{"openai/gpt-4o", true},
		{"anthropic/claude-haiku-4-5", false}, // set but empty
		{"google/gemini-2.0-flash-exp", false},
		{"mystery/model", false},
		{"no-provider", false},
	}
	for _, tt := range tests {
		if got := check.Available(tt.model); got != tt.want {
			t.Errorf("Available(%s) = %v, want %v", tt.model, got, tt.want)
		}
	}

	r := New(ConfigOverride{}, newTestLogger())
	m, err := r.ResolveModel(TierCheap, check)
	if err != nil || m != "openai/gpt-4o-mini" {
		t.Errorf("expected first credentialed model, got %s, %v", m, err)
	}
}

func TestAllOf(t *testing.T) {
	yes := AvailabilityFunc(func(string) bool { return true })
	no := AvailabilityFunc(func(string) bool { return false })
	if !AllOf(yes, yes).Available("m") {
		t.Error("expected all-true to accept")
	}
	if AllOf(yes, no).Available("m") {
		t.Error("expected any-false to reject")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("429 Too Many Requests"), ErrRateLimited},
		{errors.New("monthly quota exhausted"), ErrQuotaExhausted},
		{errors.New("context deadline exceeded"), ErrTimeout},
		{errors.New("401 Unauthorized"), ErrAuthError},
		{errors.New("model not found"), ErrModelNotFound},
		{errors.New("maximum context length is 8192 tokens"), ErrContextTooLong},
		{errors.New("502 Bad Gateway"), ErrServerError},
		{errors.New("something odd"), ErrUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
