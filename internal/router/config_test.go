package router

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Enabled || cfg.Debug {
		t.Errorf("expected enabled and not debug, got enabled=%v debug=%v", cfg.Enabled, cfg.Debug)
	}
	if cfg.Tiers.Cheap.Primary != "anthropic/claude-haiku-4-5" {
		t.Errorf("unexpected cheap primary %s", cfg.Tiers.Cheap.Primary)
	}
	if cfg.Tiers.Premium.Alias != "Premium" || len(cfg.Tiers.Premium.Fallbacks) != 3 {
		t.Errorf("unexpected premium tier %+v", cfg.Tiers.Premium)
	}
	if cfg.Thresholds.CheapToMid != 35 || cfg.Thresholds.MidToPremium != 65 {
		t.Errorf("unexpected thresholds %+v", cfg.Thresholds)
	}
	if cfg.Promotion.ConfidenceThreshold != 0.55 || cfg.Promotion.MaxTierJump != 1 {
		t.Errorf("unexpected promotion policy %+v", cfg.Promotion)
	}
	if w := cfg.Warnings(); len(w) != 0 {
		t.Errorf("expected no warnings for defaults, got %v", w)
	}
}

func TestNewConfigMergesOntoDefaults(t *testing.T) {
	cfg := NewConfig(ConfigOverride{
		Weights:   &WeightsOverride{CodeBonus: Ptr(40.0)},
		Promotion: &PromotionOverride{ConfidenceThreshold: Ptr(0.7)},
	})
	if cfg.Weights.CodeBonus != 40 {
		t.Errorf("expected code bonus 40, got %f", cfg.Weights.CodeBonus)
	}
	if cfg.Weights.MathBonus != 20 {
		t.Errorf("expected unnamed weight to keep default 20, got %f", cfg.Weights.MathBonus)
	}
	if cfg.Promotion.ConfidenceThreshold != 0.7 || !cfg.Promotion.Enabled {
		t.Errorf("unexpected promotion policy %+v", cfg.Promotion)
	}
}

func TestNewConfigEmptyOverrideIsDefault(t *testing.T) {
	if got := NewConfig(ConfigOverride{}); !reflect.DeepEqual(got, DefaultConfig()) {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestTierOverrideMergesFieldByField(t *testing.T) {
	cfg := NewConfig(ConfigOverride{
		Tiers: &TiersOverride{Cheap: &TierOverride{Primary: Ptr("openai/gpt-4o-mini")}},
	})
	if cfg.Tiers.Cheap.Primary != "openai/gpt-4o-mini" {
		t.Errorf("expected overridden primary, got %s", cfg.Tiers.Cheap.Primary)
	}
	if cfg.Tiers.Cheap.Alias != "Light" {
		t.Errorf("expected default alias to survive, got %s", cfg.Tiers.Cheap.Alias)
	}
	if len(cfg.Tiers.Cheap.Fallbacks) != 2 {
		t.Errorf("expected default fallbacks to survive, got %v", cfg.Tiers.Cheap.Fallbacks)
	}
}

func TestApplyKeepsCurrentScalars(t *testing.T) {
	cur := NewConfig(ConfigOverride{Weights: &WeightsOverride{CodeBonus: Ptr(40.0)}})
	next := cur.Apply(ConfigOverride{Thresholds: &ThresholdsOverride{CheapToMid: Ptr(30.0)}})

	if next.Weights.CodeBonus != 40 {
		t.Errorf("expected customised weight to persist across update, got %f", next.Weights.CodeBonus)
	}
	if next.Thresholds.CheapToMid != 30 || next.Thresholds.MidToPremium != 65 {
		t.Errorf("unexpected thresholds %+v", next.Thresholds)
	}
	if cur.Thresholds.CheapToMid != 35 {
		t.Error("Apply must not modify the receiver")
	}
}

func TestApplyTierOverrideResetsOmittedTiers(t *testing.T) {
	cur := NewConfig(ConfigOverride{
		Tiers: &TiersOverride{Mid: &TierOverride{Primary: Ptr("custom/mid")}},
	})

	kept := cur.Apply(ConfigOverride{Debug: Ptr(true)})
	if kept.Tiers.Mid.Primary != "custom/mid" {
		t.Errorf("update without tiers should keep current tiers, got %s", kept.Tiers.Mid.Primary)
	}

	reset := cur.Apply(ConfigOverride{
		Tiers: &TiersOverride{Cheap: &TierOverride{Alias: Ptr("Budget")}},
	})
	if reset.Tiers.Cheap.Alias != "Budget" {
		t.Errorf("expected cheap alias Budget, got %s", reset.Tiers.Cheap.Alias)
	}
	if reset.Tiers.Mid.Primary != "anthropic/claude-sonnet-4-5" {
		t.Errorf("omitted tier should revert to its default, got %s", reset.Tiers.Mid.Primary)
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	c := cfg.Clone()
	c.Tiers.Premium.Fallbacks[0] = "mutated"
	if cfg.Tiers.Premium.Fallbacks[0] == "mutated" {
		t.Error("clone shares fallback storage with the original")
	}
}

func TestWarnings(t *testing.T) {
	cfg := NewConfig(ConfigOverride{
		Thresholds: &ThresholdsOverride{CheapToMid: Ptr(70.0)},
		Weights:    &WeightsOverride{MathBonus: Ptr(-5.0)},
		Tiers:      &TiersOverride{Mid: &TierOverride{Primary: Ptr("")}},
	})
	w := cfg.Warnings()
	if len(w) != 3 {
		t.Fatalf("expected 3 warnings, got %v", w)
	}
	joined := strings.Join(w, "\n")
	for _, want := range []string{"unreachable", "mathBonus", "tiers.mid.primary"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected a warning mentioning %q, got %v", want, w)
		}
	}
}

func TestConfigOverrideJSON(t *testing.T) {
	data := []byte(`{"debug": true, "thresholds": {"midToPremium": 80}, "tiers": {"premium": {"fallbacks": ["openai/o3"]}}}`)
	var o ConfigOverride
	if err := json.Unmarshal(data, &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cfg := NewConfig(o)
	if !cfg.Debug || cfg.Thresholds.MidToPremium != 80 || cfg.Thresholds.CheapToMid != 35 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Tiers.Premium.Fallbacks, []string{"openai/o3"}) {
		t.Errorf("expected fallbacks to be replaced, got %v", cfg.Tiers.Premium.Fallbacks)
	}
	if cfg.Tiers.Premium.Primary != "anthropic/claude-opus-4-6" {
		t.Errorf("expected default premium primary, got %s", cfg.Tiers.Premium.Primary)
	}
}

func TestTierModels(t *testing.T) {
	got := DefaultConfig().Tiers.For(TierMid).Models()
	want := []string{"anthropic/claude-sonnet-4-5", "openai/gpt-4o", "google/gemini-2.0-flash-thinking-exp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Models() = %v, want %v", got, want)
	}
}
