package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clawinfra/smartroute/internal/router"
)

// AssessCommand handles 'smartroute assess'.
func AssessCommand(args []string, configPath string, s Streams) int {
	fs := flag.NewFlagSet("assess", flag.ContinueOnError)
	fs.SetOutput(s.Err)
	asJSON := fs.Bool("json", false, "Print JSON instead of a report")
	inputTokens := fs.Int("input-tokens", 0, "Estimated token count of the request that produced the answer")
	input := fs.String("input", "", "The request text; its token estimate is used when --input-tokens is not set")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	answer, err := readArg(fs.Args(), s.In)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(s.Err, "Error: answer text required")
		fmt.Fprintln(s.Err, `Usage: smartroute assess [--input-tokens N] "answer" | -`)
		return 1
	}

	logger := newLogger(s.Err, slog.LevelWarn)
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	corpus, err := cfg.Corpus()
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	_, assessor, err := corpus.Compile()
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}

	tokens := *inputTokens
	if tokens == 0 && strings.TrimSpace(*input) != "" {
		tokens = router.EstimateTokenCount(*input)
	}

	policy := cfg.RoutingConfig().Promotion
	a := assessor.Assess(answer, tokens, policy)

	if *asJSON {
		enc := json.NewEncoder(s.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			fmt.Fprintf(s.Err, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintln(s.Out, newStyles(s.Out).renderAssessment(a, policy.ConfidenceThreshold))
	return 0
}
