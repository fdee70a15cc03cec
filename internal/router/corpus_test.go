package router

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCorpusCompiles(t *testing.T) {
	c := DefaultCorpus()
	groups := map[string][]string{
		"code":          c.Input.Code,
		"math":          c.Input.Math,
		"multiStep":     c.Input.MultiStep,
		"constraints":   c.Input.Constraints,
		"ambiguity":     c.Input.Ambiguity,
		"attachments":   c.Input.Attachments,
		"hedging":       c.Response.Hedging,
		"refusal":       c.Response.Refusal,
		"contradiction": c.Response.Contradiction,
	}
	for name, patterns := range groups {
		if len(patterns) == 0 {
			t.Errorf("embedded corpus group %s is empty", name)
		}
	}
	if _, _, err := c.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestDefaultCorpusIsFreshCopy(t *testing.T) {
	a := DefaultCorpus()
	a.Input.Code[0] = "mutated"
	if DefaultCorpus().Input.Code[0] == "mutated" {
		t.Error("DefaultCorpus should return an independent copy")
	}
}

func TestParseCorpus(t *testing.T) {
	doc := `
input:
  code: ['\bfunc\b']
response:
  refusal: ['(?i)\bnope\b']
`
	c, err := ParseCorpus([]byte(doc))
	if err != nil {
		t.Fatalf("ParseCorpus: %v", err)
	}
	if len(c.Input.Code) != 1 || c.Input.Code[0] != `\bfunc\b` {
		t.Errorf("unexpected code patterns %v", c.Input.Code)
	}

	_, a, err := c.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := a.Assess("Nope, not today.", 0, DefaultPromotionPolicy())
	if !got.HasSignal(SignalRefusal) {
		t.Errorf("expected custom refusal to fire, got %+v", got.Signals)
	}
}

func TestParseCorpusInvalidYAML(t *testing.T) {
	if _, err := ParseCorpus([]byte("input: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestCompileReportsBadPattern(t *testing.T) {
	c := &Corpus{Input: InputPatterns{Math: []string{"ok", "(unclosed"}}}
	_, _, err := c.Compile()
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !strings.Contains(err.Error(), "math pattern 1") {
		t.Errorf("expected error to name the group and index, got %v", err)
	}
}

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte("input:\n  attachments: ['\\.heic$']\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCorpus(path)
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	s, err := NewScorer(c)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	if !s.Extractor().Extract("photo.heic", false).Attachments {
		t.Error("expected loaded attachment pattern to match")
	}

	if _, err := LoadCorpus(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
