package router

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultCorpusYAML []byte

// InputPatterns holds the per-feature trigger patterns used by the Extractor.
type InputPatterns struct {
	Code        []string `yaml:"code" json:"code"`
	Math        []string `yaml:"math" json:"math"`
	MultiStep   []string `yaml:"multiStep" json:"multiStep"`
	Constraints []string `yaml:"constraints" json:"constraints"`
	Ambiguity   []string `yaml:"ambiguity" json:"ambiguity"`
	Attachments []string `yaml:"attachments" json:"attachments"`
}

// ResponsePatterns holds the phrase patterns used by the answer detectors.
type ResponsePatterns struct {
	Hedging       []string `yaml:"hedging" json:"hedging"`
	Refusal       []string `yaml:"refusal" json:"refusal"`
	Contradiction []string `yaml:"contradiction" json:"contradiction"`
}

// Corpus is the swappable trigger-phrase data behind feature extraction and
// confidence assessment. Entries are RE2 regular expressions.
type Corpus struct {
	Input    InputPatterns    `yaml:"input" json:"input"`
	Response ResponsePatterns `yaml:"response" json:"response"`
}

// ParseCorpus decodes a YAML corpus document.
func ParseCorpus(data []byte) (*Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	return &c, nil
}

// LoadCorpus reads and decodes a YAML corpus file.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// DefaultCorpus returns a fresh copy of the built-in bilingual corpus.
func DefaultCorpus() *Corpus {
	c, err := ParseCorpus(defaultCorpusYAML)
	if err != nil {
		panic(fmt.Sprintf("router: embedded corpus: %v", err))
	}
	return c
}

// compiledPatterns is a named list of compiled expressions.
type compiledPatterns []*regexp.Regexp

func compilePatterns(group string, sources []string) (compiledPatterns, error) {
	out := make(compiledPatterns, 0, len(sources))
	for i, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern %d %q: %w", group, i, src, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// matchAny reports whether any pattern matches s.
func (p compiledPatterns) matchAny(s string) bool {
	for _, re := range p {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// firstMatch returns the first pattern that matches s.
func (p compiledPatterns) firstMatch(s string) (*regexp.Regexp, bool) {
	for _, re := range p {
		if re.MatchString(s) {
			return re, true
		}
	}
	return nil, false
}

// Compile builds a Scorer and an Assessor from c.
func (c *Corpus) Compile() (*Scorer, *Assessor, error) {
	s, err := NewScorer(c)
	if err != nil {
		return nil, nil, err
	}
	a, err := NewAssessor(c)
	if err != nil {
		return nil, nil, err
	}
	return s, a, nil
}

var (
	defaultOnce     sync.Once
	defaultScorer   *Scorer
	defaultAssessor *Assessor
)

// defaults compiles the embedded corpus once for the package-level helpers.
func defaults() (*Scorer, *Assessor) {
	defaultOnce.Do(func() {
		var err error
		defaultScorer, defaultAssessor, err = DefaultCorpus().Compile()
		if err != nil {
			panic(fmt.Sprintf("router: embedded corpus: %v", err))
		}
	})
	return defaultScorer, defaultAssessor
}
