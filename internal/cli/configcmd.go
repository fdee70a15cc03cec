package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/clawinfra/smartroute/internal/config"
	"github.com/clawinfra/smartroute/internal/router"
)

// ConfigCommand handles 'smartroute config' subcommands.
func ConfigCommand(args []string, configPath string, s Streams) int {
	if len(args) == 0 {
		return configShow(nil, configPath, s)
	}

	switch args[0] {
	case "show":
		return configShow(args[1:], configPath, s)
	case "check":
		return configCheck(configPath, s)
	case "init":
		return configInit(args[1:], configPath, s)
	case "help", "--help", "-h":
		PrintCommandHelp(s.Out, "smartroute", "config")
		return 0
	default:
		fmt.Fprintf(s.Err, "Unknown config subcommand: %s\n", args[0])
		PrintCommandHelp(s.Err, "smartroute", "config")
		return 1
	}
}

// configShow prints the effective routing configuration.
func configShow(args []string, configPath string, s Streams) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(s.Err)
	format := fs.String("format", "yaml", "Output format: yaml, json or toml")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(configPath, newLogger(s.Err, slog.LevelWarn))
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	rc := cfg.RoutingConfig()
	if err := writeConfig(s.Out, *format, rc); err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	for _, w := range rc.Warnings() {
		fmt.Fprintf(s.Err, "Warning: %s\n", w)
	}
	return 0
}

func writeConfig(w io.Writer, format string, rc router.SmartRoutingConfig) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rc); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rc)
	case "toml":
		return toml.NewEncoder(w).Encode(rc)
	default:
		return fmt.Errorf("%w: %q", config.ErrUnsupportedFormat, format)
	}
}

// configCheck loads the file, compiles its corpus and reports problems.
func configCheck(configPath string, s Streams) int {
	if configPath == "" {
		fmt.Fprintln(s.Err, "Error: --config is required for check")
		return 1
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	corpus, err := cfg.Corpus()
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	if _, _, err := corpus.Compile(); err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	if _, err := cfg.HealthConfig(); err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}

	warnings := cfg.RoutingConfig().Warnings()
	for _, w := range warnings {
		fmt.Fprintf(s.Out, "warning: %s\n", w)
	}
	fmt.Fprintf(s.Out, "%s: ok (%d warnings)\n", configPath, len(warnings))
	return 0
}

// configInit writes a default config file.
func configInit(args []string, configPath string, s Streams) int {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(s.Err)
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	path := configPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if path == "" {
		fmt.Fprintln(s.Err, "Error: target path required")
		fmt.Fprintln(s.Err, "Usage: smartroute config init [--force] <path.yaml|.json|.toml>")
		return 1
	}
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(s.Err, "Error: %s already exists (use --force to overwrite)\n", path)
		return 1
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(s.Out, "wrote %s\n", path)
	return 0
}
