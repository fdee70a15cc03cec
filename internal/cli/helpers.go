package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/clawinfra/smartroute/internal/config"
	"github.com/clawinfra/smartroute/internal/router"
)

// Streams are the standard streams a command reads from and writes to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process's standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// loadConfig loads configuration from path, falling back to the defaults
// when path is empty or does not exist.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("no config found, using defaults", "path", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// newLogger returns a text logger writing to w at level.
func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// buildRouter creates a router for cfg, compiling the configured corpus.
func buildRouter(cfg *config.Config, logger *slog.Logger, opts ...router.Option) (*router.Router, error) {
	corpus, err := cfg.Corpus()
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	scorer, assessor, err := corpus.Compile()
	if err != nil {
		return nil, err
	}
	opts = append([]router.Option{router.WithScorer(scorer), router.WithAssessor(assessor)}, opts...)
	return router.New(cfg.Routing, logger, opts...), nil
}

// readArg returns the joined positional args, or all of stdin when the only
// argument is "-".
func readArg(args []string, in io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}
