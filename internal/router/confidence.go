package router

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SignalType categorises an answer-quality degradation.
type SignalType string

const (
	SignalHedging           SignalType = "hedging"
	SignalShortResponse     SignalType = "short_response"
	SignalRepetition        SignalType = "repetition"
	SignalRefusal           SignalType = "refusal"
	SignalIncomplete        SignalType = "incomplete"
	SignalSelfContradiction SignalType = "self_contradiction"
)

// ConfidenceSignal is one detected degradation with its penalty in [0,1].
type ConfidenceSignal struct {
	Type   SignalType `json:"type"`
	Weight float64    `json:"weight"`
	Detail string     `json:"detail"`
}

// ConfidenceAssessment is the verdict on a produced answer.
type ConfidenceAssessment struct {
	Score          float64            `json:"score"`
	Signals        []ConfidenceSignal `json:"signals"`
	NeedsPromotion bool               `json:"needsPromotion"`
}

// HasSignal reports whether a signal of type st was detected.
func (a ConfidenceAssessment) HasSignal(st SignalType) bool {
	_, ok := a.Signal(st)
	return ok
}

// Signal returns the detected signal of type st, if any.
func (a ConfidenceAssessment) Signal(st SignalType) (ConfidenceSignal, bool) {
	for _, s := range a.Signals {
		if s.Type == st {
			return s, true
		}
	}
	return ConfidenceSignal{}, false
}

// perfectConfidence is returned when assessment is skipped.
func perfectConfidence() ConfidenceAssessment {
	return ConfidenceAssessment{Score: 1, Signals: []ConfidenceSignal{}}
}

// Detector inspects an answer and returns at most one signal.
// inputTokens is the estimated token count of the original request.
type Detector interface {
	Detect(answer string, inputTokens int) (ConfidenceSignal, bool)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(answer string, inputTokens int) (ConfidenceSignal, bool)

// Detect calls f.
func (f DetectorFunc) Detect(answer string, inputTokens int) (ConfidenceSignal, bool) {
	return f(answer, inputTokens)
}

// Assessor runs a fixed list of detectors and sums their penalties.
type Assessor struct {
	detectors []Detector
}

// NewAssessor builds the six standard detectors from the response section of c.
func NewAssessor(c *Corpus) (*Assessor, error) {
	hedging, err := compilePatterns("hedging", c.Response.Hedging)
	if err != nil {
		return nil, err
	}
	refusal, err := compilePatterns("refusal", c.Response.Refusal)
	if err != nil {
		return nil, err
	}
	contradiction, err := compilePatterns("contradiction", c.Response.Contradiction)
	if err != nil {
		return nil, err
	}

	return NewAssessorWith(
		hedgingDetector(hedging),
		DetectorFunc(detectShortResponse),
		DetectorFunc(detectRepetition),
		phraseDetector{SignalRefusal, 0.35, "refusal phrase matched", refusal},
		DetectorFunc(detectIncomplete),
		phraseDetector{SignalSelfContradiction, 0.25, "self-correction phrase matched", contradiction},
	), nil
}

// NewAssessorWith builds an assessor from arbitrary detectors, run in order.
func NewAssessorWith(detectors ...Detector) *Assessor {
	return &Assessor{detectors: detectors}
}

// Assess runs every detector. Penalties accumulate across detectors and the
// confidence is 1 minus their sum, clamped to [0,1].
func (a *Assessor) Assess(answer string, inputTokens int, policy PromotionPolicy) ConfidenceAssessment {
	signals := make([]ConfidenceSignal, 0, len(a.detectors))
	var penalty float64
	for _, d := range a.detectors {
		if sig, ok := d.Detect(answer, inputTokens); ok {
			signals = append(signals, sig)
			penalty += sig.Weight
		}
	}

	score := math.Max(0, math.Min(1, 1-penalty))
	return ConfidenceAssessment{
		Score:          score,
		Signals:        signals,
		NeedsPromotion: policy.Enabled && score < policy.ConfidenceThreshold,
	}
}

// AssessConfidence assesses answer with the built-in corpus.
func AssessConfidence(answer string, inputTokens int, policy PromotionPolicy) ConfidenceAssessment {
	_, a := defaults()
	return a.Assess(answer, inputTokens, policy)
}

// ── Detectors ────────────────────────────────────────────────────────────────

// hedgingDetector counts every match of every pattern: 0.08 each, capped at 0.30.
type hedgingDetector compiledPatterns

func (h hedgingDetector) Detect(answer string, _ int) (ConfidenceSignal, bool) {
	count := 0
	var matched []string
	for _, re := range h {
		if n := len(re.FindAllStringIndex(answer, -1)); n > 0 {
			count += n
			matched = append(matched, re.String())
		}
	}
	if count == 0 {
		return ConfidenceSignal{}, false
	}
	if len(matched) > 3 {
		matched = matched[:3]
	}
	return ConfidenceSignal{
		Type:   SignalHedging,
		Weight: math.Min(0.30, float64(count)*0.08),
		Detail: fmt.Sprintf("hedging phrases matched %d times (%s...)", count, strings.Join(matched, ", ")),
	}, true
}

// phraseDetector fires a fixed penalty on the first matching pattern.
type phraseDetector struct {
	kind     SignalType
	weight   float64
	label    string
	patterns compiledPatterns
}

func (p phraseDetector) Detect(answer string, _ int) (ConfidenceSignal, bool) {
	re, ok := p.patterns.firstMatch(answer)
	if !ok {
		return ConfidenceSignal{}, false
	}
	return ConfidenceSignal{
		Type:   p.kind,
		Weight: p.weight,
		Detail: fmt.Sprintf("%s: %s", p.label, re.String()),
	}, true
}

// detectShortResponse is a cascade: the first applicable rule wins.
func detectShortResponse(answer string, inputTokens int) (ConfidenceSignal, bool) {
	n := utf8.RuneCountInString(strings.TrimSpace(answer))

	switch {
	case n < 5:
		return ConfidenceSignal{
			Type:   SignalShortResponse,
			Weight: 0.55,
			Detail: fmt.Sprintf("answer is effectively empty (%d chars)", n),
		}, true
	case inputTokens >= 100 && n < 100:
		return ConfidenceSignal{
			Type:   SignalShortResponse,
			Weight: 0.35,
			Detail: fmt.Sprintf("answer of %d chars is too short for a %d-token request", n, inputTokens),
		}, true
	case inputTokens >= 50 && n < 50:
		return ConfidenceSignal{
			Type:   SignalShortResponse,
			Weight: 0.30,
			Detail: fmt.Sprintf("answer of %d chars is too short for a %d-token request", n, inputTokens),
		}, true
	}
	return ConfidenceSignal{}, false
}

var reSentenceSplit = regexp.MustCompile(`[.!?。！？\n]+`)

// detectRepetition compares 3-character shingle sets of every sentence pair.
func detectRepetition(answer string, _ int) (ConfidenceSignal, bool) {
	var sentences []string
	for _, part := range reSentenceSplit.Split(answer, -1) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > 10 {
			sentences = append(sentences, part)
		}
	}
	if len(sentences) < 3 {
		return ConfidenceSignal{}, false
	}

	sets := make([]map[string]struct{}, len(sentences))
	for i, s := range sentences {
		sets[i] = shingles(s)
	}

	duplicates := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			if jaccard(sets[i], sets[j]) > 0.8 {
				duplicates++
			}
		}
	}
	if duplicates == 0 {
		return ConfidenceSignal{}, false
	}

	ratio := float64(duplicates) / float64(len(sentences))
	return ConfidenceSignal{
		Type:   SignalRepetition,
		Weight: math.Min(0.20, ratio*0.30),
		Detail: fmt.Sprintf("%d near-duplicate sentence pairs among %d sentences (similarity > 0.8)", duplicates, len(sentences)),
	}, true
}

// shingles returns the set of 3-rune substrings of s, lowercased with
// whitespace runs collapsed to one space.
func shingles(s string) map[string]struct{} {
	runes := []rune(strings.Join(strings.Fields(strings.ToLower(s)), " "))
	set := make(map[string]struct{})
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

var (
	reListAnnouncement = regexp.MustCompile(`(?i)(\d+)\s*(?:가지|개|항목|things?|items?|points?)\s*[:：]`)
	reNumberedItem     = regexp.MustCompile(`(?m)^\s*\d+[.)]\s`)
)

const terminalPunctuation = ".!?。！？)]}>"

// detectIncomplete collects every truncation reason but applies one penalty.
func detectIncomplete(answer string, _ int) (ConfidenceSignal, bool) {
	var reasons []string

	if strings.Count(answer, "```")%2 != 0 {
		reasons = append(reasons, "unterminated code block")
	}

	if utf8.RuneCountInString(answer) > 200 {
		trimmed := strings.TrimSpace(answer)
		last, _ := utf8.DecodeLastRuneInString(trimmed)
		if !strings.ContainsRune(terminalPunctuation, last) {
			reasons = append(reasons, "answer appears cut off mid-sentence")
		}
	}

	if m := reListAnnouncement.FindStringSubmatch(answer); m != nil {
		expected, err := strconv.Atoi(m[1])
		items := len(reNumberedItem.FindAllStringIndex(answer, -1))
		if err == nil && items > 0 && items < expected {
			reasons = append(reasons, fmt.Sprintf("announced %d items but listed %d", expected, items))
		}
	}

	if len(reasons) == 0 {
		return ConfidenceSignal{}, false
	}
	return ConfidenceSignal{
		Type:   SignalIncomplete,
		Weight: 0.20,
		Detail: "incomplete: " + strings.Join(reasons, ", "),
	}, true
}
