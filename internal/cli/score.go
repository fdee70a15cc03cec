package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/clawinfra/smartroute/internal/router"
)

// ScoredInput pairs an input with its complexity breakdown.
type ScoredInput struct {
	Input string                 `json:"input"`
	Score router.ComplexityScore `json:"score"`
}

// ScoreCommand handles 'smartroute score'.
func ScoreCommand(args []string, configPath string, s Streams) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(s.Err)
	asJSON := fs.Bool("json", false, "Print JSON instead of a report")
	file := fs.String("file", "", "Score each non-empty line of a file ('-' for stdin)")
	attachments := fs.Bool("attachments", false, "Treat inputs as carrying attachments")
	parallel := fs.Int("parallel", runtime.NumCPU(), "Maximum inputs scored concurrently")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	inputs := fs.Args()
	if *file != "" {
		lines, err := readLines(*file, s.In)
		if err != nil {
			fmt.Fprintf(s.Err, "Error: %v\n", err)
			return 1
		}
		inputs = lines
	}
	if len(inputs) == 0 {
		fmt.Fprintln(s.Err, "Error: at least one input required")
		fmt.Fprintln(s.Err, `Usage: smartroute score [--json] [--file <path>] "input" ...`)
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
	scorer, err := router.NewScorer(corpus)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}

	results, err := scoreAll(context.Background(), scorer, cfg.RoutingConfig(), inputs, *attachments, *parallel)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(s.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(s.Err, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	st := newStyles(s.Out)
	counts := make(map[router.Tier]int)
	for _, r := range results {
		fmt.Fprintln(s.Out, st.renderScore(r.Input, r.Score))
		counts[r.Score.Tier]++
	}
	if len(results) > 1 {
		parts := make([]string, 0, len(router.Tiers))
		for _, t := range router.Tiers {
			parts = append(parts, fmt.Sprintf("%s %d", st.tier(t), counts[t]))
		}
		fmt.Fprintf(s.Out, "%d inputs: %s\n", len(results), strings.Join(parts, ", "))
	}
	return 0
}

// scoreAll scores inputs with bounded concurrency, preserving input order.
func scoreAll(ctx context.Context, scorer *router.Scorer, cfg router.SmartRoutingConfig, inputs []string, attachments bool, limit int) ([]ScoredInput, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]ScoredInput, len(inputs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			// Unique index per goroutine, no locking needed.
			results[i] = ScoredInput{
				Input: in,
				Score: scorer.Score(in, attachments, cfg.Weights, cfg.Thresholds),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func readLines(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open inputs: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	return lines, nil
}
