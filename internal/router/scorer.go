package router

import (
	"math"
)

// Weights are the per-feature contributions to the complexity score.
type Weights struct {
	LengthMax       float64 `json:"lengthMax" yaml:"lengthMax" toml:"lengthMax"`
	CodeBonus       float64 `json:"codeBonus" yaml:"codeBonus" toml:"codeBonus"`
	MathBonus       float64 `json:"mathBonus" yaml:"mathBonus" toml:"mathBonus"`
	MultiStepBonus  float64 `json:"multiStepBonus" yaml:"multiStepBonus" toml:"multiStepBonus"`
	ConstraintBonus float64 `json:"constraintBonus" yaml:"constraintBonus" toml:"constraintBonus"`
	AmbiguityBonus  float64 `json:"ambiguityBonus" yaml:"ambiguityBonus" toml:"ambiguityBonus"`
	AttachmentBonus float64 `json:"attachmentBonus" yaml:"attachmentBonus" toml:"attachmentBonus"`
}

// Thresholds are the score boundaries between tiers.
type Thresholds struct {
	CheapToMid   float64 `json:"cheapToMid" yaml:"cheapToMid" toml:"cheapToMid"`
	MidToPremium float64 `json:"midToPremium" yaml:"midToPremium" toml:"midToPremium"`
}

// FeatureScores holds each feature's contribution to the raw score.
type FeatureScores struct {
	Length      float64 `json:"length"`
	Code        float64 `json:"code"`
	Math        float64 `json:"math"`
	MultiStep   float64 `json:"multiStep"`
	Constraints float64 `json:"constraints"`
	Ambiguity   float64 `json:"ambiguity"`
	Attachments float64 `json:"attachments"`
}

// Total is the base score, the sum of all seven contributions.
func (fs FeatureScores) Total() float64 {
	return fs.Length + fs.Code + fs.Math + fs.MultiStep + fs.Constraints + fs.Ambiguity + fs.Attachments
}

// ComplexityScore is the full scoring output for one request.
type ComplexityScore struct {
	RawScore         float64       `json:"rawScore"`
	NormalizedScore  int           `json:"normalizedScore"`
	InteractionBonus float64       `json:"interactionBonus"`
	FeatureScores    FeatureScores `json:"featureScores"`
	Features         InputFeatures `json:"features"`
	Tier             Tier          `json:"tier"`
}

// Scorer maps request text to a ComplexityScore. It holds only the compiled
// corpus; weights and thresholds are passed per call so a caller can use one
// configuration snapshot for the whole computation.
type Scorer struct {
	extractor *Extractor
}

// NewScorer compiles the input patterns of c.
func NewScorer(c *Corpus) (*Scorer, error) {
	e, err := NewExtractor(c)
	if err != nil {
		return nil, err
	}
	return &Scorer{extractor: e}, nil
}

// Extractor returns the scorer's feature extractor.
func (s *Scorer) Extractor() *Extractor {
	return s.extractor
}

// Score extracts features and computes the complexity score and tier.
func (s *Scorer) Score(input string, hasAttachments bool, w Weights, th Thresholds) ComplexityScore {
	features := s.extractor.Extract(input, hasAttachments)
	return scoreFeatures(features, w, th)
}

// ScoreInput scores input with the built-in corpus.
func ScoreInput(input string, hasAttachments bool, w Weights, th Thresholds) ComplexityScore {
	s, _ := defaults()
	return s.Score(input, hasAttachments, w, th)
}

func scoreFeatures(features InputFeatures, w Weights, th Thresholds) ComplexityScore {
	fs := CalculateFeatureScores(features, w)
	bonus := interactionBonus(features.ActiveCount())
	raw := fs.Total() + bonus

	normalized := int(roundHalfUp(math.Min(100, raw)))
	if normalized < 0 {
		normalized = 0
	}

	return ComplexityScore{
		RawScore:         roundHalfUp(raw*100) / 100,
		NormalizedScore:  normalized,
		InteractionBonus: bonus,
		FeatureScores:    fs,
		Features:         features,
		Tier:             SelectTier(normalized, th),
	}
}

// CalculateFeatureScores converts features into per-feature contributions.
func CalculateFeatureScores(f InputFeatures, w Weights) FeatureScores {
	return FeatureScores{
		Length:      lengthScore(f.TokenCount, w.LengthMax),
		Code:        bonusIf(f.HasCode, w.CodeBonus),
		Math:        bonusIf(f.MathLike, w.MathBonus),
		MultiStep:   bonusIf(f.MultiStep, w.MultiStepBonus),
		Constraints: bonusIf(f.Constraints, w.ConstraintBonus),
		Ambiguity:   bonusIf(f.Ambiguity, w.AmbiguityBonus),
		Attachments: bonusIf(f.Attachments, w.AttachmentBonus),
	}
}

func bonusIf(on bool, weight float64) float64 {
	if on {
		return weight
	}
	return 0
}

// lengthBreakpoints are (token count, fraction of the configured maximum).
var lengthBreakpoints = [...]struct {
	tokens   float64
	fraction float64
}{
	{0, 0},
	{30, 0.15},
	{80, 0.35},
	{200, 0.60},
	{500, 0.85},
	{1000, 1.0},
}

// lengthScore interpolates linearly between breakpoints and clamps at max.
func lengthScore(tokens int, maxScore float64) float64 {
	t := float64(tokens)
	last := lengthBreakpoints[len(lengthBreakpoints)-1]
	if t >= last.tokens {
		return maxScore
	}
	for i := 1; i < len(lengthBreakpoints); i++ {
		curr := lengthBreakpoints[i]
		if t <= curr.tokens {
			prev := lengthBreakpoints[i-1]
			ratio := (t - prev.tokens) / (curr.tokens - prev.tokens)
			lo, hi := maxScore*prev.fraction, maxScore*curr.fraction
			return lo + ratio*(hi-lo)
		}
	}
	return maxScore
}

// interactionBonus rewards co-occurring signals super-additively.
func interactionBonus(active int) float64 {
	switch {
	case active >= 4:
		return 20
	case active == 3:
		return 12
	case active == 2:
		return 5
	default:
		return 0
	}
}

// roundHalfUp rounds x.5 toward positive infinity.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
