package router

import (
	"encoding/json"
	"fmt"
)

// Tier represents the cost/capability class a request is routed to.
type Tier int

const (
	TierCheap   Tier = iota // greetings, short factual questions
	TierMid                 // moderate code, explanations
	TierPremium             // multi-signal, long or proof-heavy work
)

var tierNames = [...]string{"cheap", "mid", "premium"}

// Tiers lists every tier in promotion order.
var Tiers = []Tier{TierCheap, TierMid, TierPremium}

func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// Valid reports whether t is one of the three defined tiers.
func (t Tier) Valid() bool {
	return t >= TierCheap && t <= TierPremium
}

// ParseTier converts a tier name ("cheap", "mid", "premium") to a Tier.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return TierCheap, fmt.Errorf("unknown tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(data []byte) error {
	parsed, err := ParseTier(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Accepts the tier name or its index.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var i int
		if err2 := json.Unmarshal(data, &i); err2 != nil {
			return err
		}
		if !Tier(i).Valid() {
			return fmt.Errorf("invalid tier %d", i)
		}
		*t = Tier(i)
		return nil
	}
	return t.UnmarshalText([]byte(s))
}

// SelectTier maps a normalised score (0-100) to a Tier using the two thresholds.
// Thresholds are not validated; a reversed pair yields whatever partition the
// comparisons produce.
func SelectTier(score int, th Thresholds) Tier {
	s := float64(score)
	if s < th.CheapToMid {
		return TierCheap
	}
	if s < th.MidToPremium {
		return TierMid
	}
	return TierPremium
}

// PromoteTier returns the tier steps levels above current, clamped at premium.
// Negative steps never lower the tier.
func PromoteTier(current Tier, steps int) Tier {
	if steps < 0 {
		steps = 0
	}
	next := int(current) + steps
	if next > int(TierPremium) {
		return TierPremium
	}
	return Tier(next)
}
