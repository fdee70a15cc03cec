package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/clawinfra/smartroute/internal/router"
)

// RouteResult is the JSON form of 'smartroute route'.
type RouteResult struct {
	Decision  router.RoutingDecision  `json:"decision"`
	Resolved  string                  `json:"resolvedModel,omitempty"`
	Promotion *router.PromotionResult `json:"promotion,omitempty"`
	Stats     *router.RoutingStats    `json:"stats,omitempty"`
}

// RouteCommand handles 'smartroute route'.
func RouteCommand(args []string, configPath string, s Streams) int {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	fs.SetOutput(s.Err)
	asJSON := fs.Bool("json", false, "Print JSON instead of a report")
	attachments := fs.Bool("attachments", false, "The request carries attachments")
	answer := fs.String("answer", "", "Answer produced by the routed model; checked for promotion")
	resolve := fs.Bool("resolve", false, "Pick the first model of the tier whose provider API key is set")
	verbose := fs.Bool("v", false, "Log routing decisions")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	input, err := readArg(fs.Args(), s.In)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(s.Err, "Error: input text required")
		fmt.Fprintln(s.Err, `Usage: smartroute route [--answer "..."] [--resolve] "input" | -`)
		return 1
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(s.Err, level)
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	r, err := buildRouter(cfg, logger)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	if !r.Enabled() {
		fmt.Fprintln(s.Err, "Note: smart routing is disabled in this configuration; showing what it would choose")
	}

	res := RouteResult{Decision: r.Route(router.RouteRequest{Input: input, HasAttachments: *attachments})}
	final := res.Decision

	answered := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "answer" {
			answered = true
		}
	})
	if answered {
		p := r.CheckAndPromote(res.Decision, *answer, "")
		res.Promotion = &p
		if p.Promoted && p.NewDecision != nil {
			final = *p.NewDecision
		}
	}

	if *resolve {
		m, err := r.ResolveModel(final.Tier, router.EnvCredentialCheck(nil))
		if err != nil && !errors.Is(err, router.ErrNoAvailableModel) {
			fmt.Fprintf(s.Err, "Error: %v\n", err)
			return 1
		}
		if err != nil {
			fmt.Fprintf(s.Err, "Warning: %v\n", err)
		}
		res.Resolved = m
	}

	if r.Config().Debug {
		st := r.Stats()
		res.Stats = &st
	}

	if *asJSON {
		enc := json.NewEncoder(s.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(s.Err, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	st := newStyles(s.Out)
	fmt.Fprintln(s.Out, st.renderDecision(res.Decision, r.TierAlias(res.Decision.Tier)))
	if res.Promotion != nil {
		fmt.Fprintln(s.Out, st.renderAssessment(res.Promotion.Confidence, r.Config().Promotion.ConfidenceThreshold))
		if res.Promotion.Promoted {
			fmt.Fprintln(s.Out, st.renderDecision(final, r.TierAlias(final.Tier)))
		}
	}
	if res.Resolved != "" {
		fmt.Fprintf(s.Out, "resolved model: %s\n", res.Resolved)
	}
	return 0
}
