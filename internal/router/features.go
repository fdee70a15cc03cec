package router

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// InputFeatures are the seven signals extracted from a request.
type InputFeatures struct {
	TokenCount  int  `json:"tokenCount"`
	HasCode     bool `json:"hasCode"`
	MathLike    bool `json:"mathLike"`
	MultiStep   bool `json:"multiStep"`
	Constraints bool `json:"constraints"`
	Ambiguity   bool `json:"ambiguity"`
	Attachments bool `json:"attachments"`
}

// ActiveCount returns how many of the six boolean features are set.
func (f InputFeatures) ActiveCount() int {
	n := 0
	for _, on := range []bool{f.HasCode, f.MathLike, f.MultiStep, f.Constraints, f.Ambiguity, f.Attachments} {
		if on {
			n++
		}
	}
	return n
}

// Extractor turns raw text into InputFeatures using a compiled corpus.
type Extractor struct {
	code        compiledPatterns
	math        compiledPatterns
	multiStep   compiledPatterns
	constraints compiledPatterns
	ambiguity   compiledPatterns
	attachments compiledPatterns
}

// NewExtractor compiles the input section of a corpus.
func NewExtractor(c *Corpus) (*Extractor, error) {
	e := &Extractor{}
	groups := []struct {
		name string
		src  []string
		dst  *compiledPatterns
	}{
		{"code", c.Input.Code, &e.code},
		{"math", c.Input.Math, &e.math},
		{"multiStep", c.Input.MultiStep, &e.multiStep},
		{"constraints", c.Input.Constraints, &e.constraints},
		{"ambiguity", c.Input.Ambiguity, &e.ambiguity},
		{"attachments", c.Input.Attachments, &e.attachments},
	}

	for _, g := range groups {
		compiled, err := compilePatterns(g.name, g.src)
		if err != nil {
			return nil, err
		}
		*g.dst = compiled
	}
	return e, nil
}

// Extract computes the features of input. hasAttachments is OR'd with the
// attachment patterns.
func (e *Extractor) Extract(input string, hasAttachments bool) InputFeatures {
	return InputFeatures{
		TokenCount:  EstimateTokenCount(input),
		HasCode:     e.code.matchAny(input),
		MathLike:    e.math.matchAny(input),
		MultiStep:   e.multiStep.matchAny(input),
		Constraints: e.constraints.matchAny(input),
		Ambiguity:   e.ambiguity.matchAny(input),
		Attachments: hasAttachments || e.attachments.matchAny(input),
	}
}

// ExtractFeatures runs the default extractor.
func ExtractFeatures(input string, hasAttachments bool) InputFeatures {
	s, _ := defaults()
	return s.extractor.Extract(input, hasAttachments)
}

var reFencedBlock = regexp.MustCompile("(?s)```.*?```")

// isDenseScript reports whether r belongs to a script that tokenises at
// roughly 1.5 characters per token (Hangul syllables and jamo).
func isDenseScript(r rune) bool {
	return (r >= 0xAC00 && r <= 0xD7AF) ||
		(r >= 0x3130 && r <= 0x318F) ||
		(r >= 0x1100 && r <= 0x11FF)
}

// EstimateTokenCount approximates the token count of mixed-script text.
//
// Fenced code blocks count one token per 3 characters. Of the remainder,
// dense-script characters count one token per 1.5 characters and the
// whitespace-delimited words left after removing them count 1.3 tokens each.
// Each contribution is rounded up before summing.
func EstimateTokenCount(input string) int {
	if input == "" {
		return 0
	}

	codeTokens := 0
	rest := reFencedBlock.ReplaceAllStringFunc(input, func(block string) string {
		codeTokens += int(math.Ceil(float64(utf8.RuneCountInString(block)) / 3))
		return ""
	})

	dense := 0
	sparse := strings.Map(func(r rune) rune {
		if isDenseScript(r) {
			dense++
			return -1
		}
		return r
	}, rest)
	denseTokens := int(math.Ceil(float64(dense) / 1.5))

	words := len(strings.Fields(sparse))
	wordTokens := int(math.Ceil(float64(words) * 1.3))

	return codeTokens + denseTokens + wordTokens
}
