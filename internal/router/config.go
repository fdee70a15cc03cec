package router

import (
	"fmt"
	"slices"
)

// TierModelConfig maps one tier to its resources.
type TierModelConfig struct {
	// Primary is the "provider/model" id chosen for the tier.
	Primary string `json:"primary" yaml:"primary" toml:"primary"`

	// Fallbacks are probed in order when the primary is unusable.
	Fallbacks []string `json:"fallbacks" yaml:"fallbacks" toml:"fallbacks"`

	// Alias is the display name shown in reason strings and UIs.
	Alias string `json:"alias" yaml:"alias" toml:"alias"`
}

// Models returns the primary followed by the fallbacks.
func (t TierModelConfig) Models() []string {
	out := make([]string, 0, 1+len(t.Fallbacks))
	out = append(out, t.Primary)
	return append(out, t.Fallbacks...)
}

// TierSet holds one TierModelConfig per tier.
type TierSet struct {
	Cheap   TierModelConfig `json:"cheap" yaml:"cheap" toml:"cheap"`
	Mid     TierModelConfig `json:"mid" yaml:"mid" toml:"mid"`
	Premium TierModelConfig `json:"premium" yaml:"premium" toml:"premium"`
}

// For returns the configuration of tier t. Unknown tiers resolve to premium.
func (s TierSet) For(t Tier) TierModelConfig {
	switch t {
	case TierCheap:
		return s.Cheap
	case TierMid:
		return s.Mid
	default:
		return s.Premium
	}
}

// PromotionPolicy controls confidence-gated escalation.
type PromotionPolicy struct {
	Enabled             bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
	ConfidenceThreshold float64 `json:"confidenceThreshold" yaml:"confidenceThreshold" toml:"confidenceThreshold"`
	// MaxPromotions below 1 disables promotion. A decision is promoted at
	// most once, so larger values behave like 1.
	MaxPromotions int `json:"maxPromotions" yaml:"maxPromotions" toml:"maxPromotions"`
	// MaxTierJump is the number of tiers a promotion advances, clamped at premium.
	MaxTierJump int `json:"maxTierJump" yaml:"maxTierJump" toml:"maxTierJump"`
}

// SmartRoutingConfig is the complete routing configuration.
type SmartRoutingConfig struct {
	Enabled    bool            `json:"enabled" yaml:"enabled" toml:"enabled"`
	Tiers      TierSet         `json:"tiers" yaml:"tiers" toml:"tiers"`
	Weights    Weights         `json:"weights" yaml:"weights" toml:"weights"`
	Thresholds Thresholds      `json:"thresholds" yaml:"thresholds" toml:"thresholds"`
	Promotion  PromotionPolicy `json:"promotion" yaml:"promotion" toml:"promotion"`
	// Debug records every decision in the event log and logs it at INFO.
	Debug bool `json:"debug" yaml:"debug" toml:"debug"`
}

func defaultTiers() TierSet {
	return TierSet{
		Cheap: TierModelConfig{
			Primary: "anthropic/claude-haiku-4-5",
			Fallbacks: []string{
				"openai/gpt-4o-mini",
				"google/gemini-2.0-flash-exp",
			},
			Alias: "Light",
		},
		Mid: TierModelConfig{
			Primary: "anthropic/claude-sonnet-4-5",
			Fallbacks: []string{
				"openai/gpt-4o",
				"google/gemini-2.0-flash-thinking-exp",
			},
			Alias: "Standard",
		},
		Premium: TierModelConfig{
			Primary: "anthropic/claude-opus-4-6",
			Fallbacks: []string{
				"openai/o3",
				"google/gemini-exp-1206",
				"anthropic/claude-sonnet-4-5",
			},
			Alias: "Premium",
		},
	}
}

// DefaultWeights returns the built-in scoring weights.
func DefaultWeights() Weights {
	return Weights{
		LengthMax:       25,
		CodeBonus:       25,
		MathBonus:       20,
		MultiStepBonus:  15,
		ConstraintBonus: 10,
		AmbiguityBonus:  10,
		AttachmentBonus: 5,
	}
}

// DefaultThresholds returns the built-in tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{CheapToMid: 35, MidToPremium: 65}
}

// DefaultPromotionPolicy returns the built-in promotion policy.
func DefaultPromotionPolicy() PromotionPolicy {
	return PromotionPolicy{
		Enabled:             true,
		ConfidenceThreshold: 0.55,
		MaxPromotions:       1,
		MaxTierJump:         1,
	}
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() SmartRoutingConfig {
	return SmartRoutingConfig{
		Enabled:    true,
		Tiers:      defaultTiers(),
		Weights:    DefaultWeights(),
		Thresholds: DefaultThresholds(),
		Promotion:  DefaultPromotionPolicy(),
		Debug:      false,
	}
}

// Clone returns a deep copy.
func (c SmartRoutingConfig) Clone() SmartRoutingConfig {
	c.Tiers.Cheap.Fallbacks = slices.Clone(c.Tiers.Cheap.Fallbacks)
	c.Tiers.Mid.Fallbacks = slices.Clone(c.Tiers.Mid.Fallbacks)
	c.Tiers.Premium.Fallbacks = slices.Clone(c.Tiers.Premium.Fallbacks)
	return c
}

// Warnings lists inconsistencies that are accepted but likely unintended.
// The configuration is never rejected; scoring simply follows the formulas.
func (c SmartRoutingConfig) Warnings() []string {
	var out []string
	if c.Thresholds.CheapToMid >= c.Thresholds.MidToPremium {
		out = append(out, fmt.Sprintf("thresholds.cheapToMid (%g) >= thresholds.midToPremium (%g): mid tier is unreachable",
			c.Thresholds.CheapToMid, c.Thresholds.MidToPremium))
	}
	weights := []struct {
		name string
		v    float64
	}{
		{"lengthMax", c.Weights.LengthMax},
		{"codeBonus", c.Weights.CodeBonus},
		{"mathBonus", c.Weights.MathBonus},
		{"multiStepBonus", c.Weights.MultiStepBonus},
		{"constraintBonus", c.Weights.ConstraintBonus},
		{"ambiguityBonus", c.Weights.AmbiguityBonus},
		{"attachmentBonus", c.Weights.AttachmentBonus},
	}
	for _, w := range weights {
		if w.v < 0 {
			out = append(out, fmt.Sprintf("weights.%s is negative (%g)", w.name, w.v))
		}
	}
	if c.Promotion.ConfidenceThreshold < 0 || c.Promotion.ConfidenceThreshold > 1 {
		out = append(out, fmt.Sprintf("promotion.confidenceThreshold (%g) is outside [0,1]", c.Promotion.ConfidenceThreshold))
	}
	for _, t := range Tiers {
		if c.Tiers.For(t).Primary == "" {
			out = append(out, fmt.Sprintf("tiers.%s.primary is empty", t))
		}
	}
	return out
}

// ── Partial overrides ────────────────────────────────────────────────────────

// ConfigOverride is a partial SmartRoutingConfig. Nil fields are left alone.
type ConfigOverride struct {
	Enabled    *bool               `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Debug      *bool               `json:"debug,omitempty" yaml:"debug,omitempty" toml:"debug,omitempty"`
	Tiers      *TiersOverride      `json:"tiers,omitempty" yaml:"tiers,omitempty" toml:"tiers,omitempty"`
	Weights    *WeightsOverride    `json:"weights,omitempty" yaml:"weights,omitempty" toml:"weights,omitempty"`
	Thresholds *ThresholdsOverride `json:"thresholds,omitempty" yaml:"thresholds,omitempty" toml:"thresholds,omitempty"`
	Promotion  *PromotionOverride  `json:"promotion,omitempty" yaml:"promotion,omitempty" toml:"promotion,omitempty"`
}

// TiersOverride overrides individual tiers.
type TiersOverride struct {
	Cheap   *TierOverride `json:"cheap,omitempty" yaml:"cheap,omitempty" toml:"cheap,omitempty"`
	Mid     *TierOverride `json:"mid,omitempty" yaml:"mid,omitempty" toml:"mid,omitempty"`
	Premium *TierOverride `json:"premium,omitempty" yaml:"premium,omitempty" toml:"premium,omitempty"`
}

// TierOverride overrides fields of one tier. A non-nil Fallbacks replaces the list.
type TierOverride struct {
	Primary   *string  `json:"primary,omitempty" yaml:"primary,omitempty" toml:"primary,omitempty"`
	Fallbacks []string `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty" toml:"fallbacks,omitempty"`
	Alias     *string  `json:"alias,omitempty" yaml:"alias,omitempty" toml:"alias,omitempty"`
}

// WeightsOverride overrides individual scoring weights.
type WeightsOverride struct {
	LengthMax       *float64 `json:"lengthMax,omitempty" yaml:"lengthMax,omitempty" toml:"lengthMax,omitempty"`
	CodeBonus       *float64 `json:"codeBonus,omitempty" yaml:"codeBonus,omitempty" toml:"codeBonus,omitempty"`
	MathBonus       *float64 `json:"mathBonus,omitempty" yaml:"mathBonus,omitempty" toml:"mathBonus,omitempty"`
	MultiStepBonus  *float64 `json:"multiStepBonus,omitempty" yaml:"multiStepBonus,omitempty" toml:"multiStepBonus,omitempty"`
	ConstraintBonus *float64 `json:"constraintBonus,omitempty" yaml:"constraintBonus,omitempty" toml:"constraintBonus,omitempty"`
	AmbiguityBonus  *float64 `json:"ambiguityBonus,omitempty" yaml:"ambiguityBonus,omitempty" toml:"ambiguityBonus,omitempty"`
	AttachmentBonus *float64 `json:"attachmentBonus,omitempty" yaml:"attachmentBonus,omitempty" toml:"attachmentBonus,omitempty"`
}

// ThresholdsOverride overrides individual tier boundaries.
type ThresholdsOverride struct {
	CheapToMid   *float64 `json:"cheapToMid,omitempty" yaml:"cheapToMid,omitempty" toml:"cheapToMid,omitempty"`
	MidToPremium *float64 `json:"midToPremium,omitempty" yaml:"midToPremium,omitempty" toml:"midToPremium,omitempty"`
}

// PromotionOverride overrides individual promotion policy fields.
type PromotionOverride struct {
	Enabled             *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	ConfidenceThreshold *float64 `json:"confidenceThreshold,omitempty" yaml:"confidenceThreshold,omitempty" toml:"confidenceThreshold,omitempty"`
	MaxPromotions       *int     `json:"maxPromotions,omitempty" yaml:"maxPromotions,omitempty" toml:"maxPromotions,omitempty"`
	MaxTierJump         *int     `json:"maxTierJump,omitempty" yaml:"maxTierJump,omitempty" toml:"maxTierJump,omitempty"`
}

// Ptr returns a pointer to v, for building overrides inline.
func Ptr[T any](v T) *T {
	return &v
}

// NewConfig merges o onto the built-in defaults.
func NewConfig(o ConfigOverride) SmartRoutingConfig {
	return DefaultConfig().Apply(o)
}

// Apply merges o onto c and returns the result; c is not modified.
//
// Scalar groups merge field by field. If o carries any tier override, every
// tier starts again from its built-in default before the override is applied,
// so a tier omitted from o reverts to its default rather than keeping c's.
func (c SmartRoutingConfig) Apply(o ConfigOverride) SmartRoutingConfig {
	out := c.Clone()

	set(&out.Enabled, o.Enabled)
	set(&out.Debug, o.Debug)

	if o.Tiers != nil {
		def := defaultTiers()
		out.Tiers = TierSet{
			Cheap:   def.Cheap.apply(o.Tiers.Cheap),
			Mid:     def.Mid.apply(o.Tiers.Mid),
			Premium: def.Premium.apply(o.Tiers.Premium),
		}
	}

	if w := o.Weights; w != nil {
		set(&out.Weights.LengthMax, w.LengthMax)
		set(&out.Weights.CodeBonus, w.CodeBonus)
		set(&out.Weights.MathBonus, w.MathBonus)
		set(&out.Weights.MultiStepBonus, w.MultiStepBonus)
		set(&out.Weights.ConstraintBonus, w.ConstraintBonus)
		set(&out.Weights.AmbiguityBonus, w.AmbiguityBonus)
		set(&out.Weights.AttachmentBonus, w.AttachmentBonus)
	}

	if th := o.Thresholds; th != nil {
		set(&out.Thresholds.CheapToMid, th.CheapToMid)
		set(&out.Thresholds.MidToPremium, th.MidToPremium)
	}

	if p := o.Promotion; p != nil {
		set(&out.Promotion.Enabled, p.Enabled)
		set(&out.Promotion.ConfidenceThreshold, p.ConfidenceThreshold)
		set(&out.Promotion.MaxPromotions, p.MaxPromotions)
		set(&out.Promotion.MaxTierJump, p.MaxTierJump)
	}

	return out
}

func (t TierModelConfig) apply(o *TierOverride) TierModelConfig {
	if o == nil {
		return t
	}
	set(&t.Primary, o.Primary)
	set(&t.Alias, o.Alias)
	if o.Fallbacks != nil {
		t.Fallbacks = slices.Clone(o.Fallbacks)
	}
	return t
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
