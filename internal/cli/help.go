package cli

import (
	"fmt"
	"io"
)

// commandInfo describes a top-level subcommand.
type commandInfo struct {
	Name     string
	Args     string
	Short    string
	Long     string
	Examples []string
}

var commands = []commandInfo{
	{
		Name:  "score",
		Args:  "[--json] [--file <path>] <input>...",
		Short: "Show the complexity breakdown and tier for inputs",
		Long: `Extract features from each input and print the per-feature score,
interaction bonus, normalised 0-100 score and selected tier.

With --file, every non-empty line of the file is scored ('-' reads stdin).
Inputs are scored concurrently (--parallel) and reported in input order.`,
		Examples: []string{
			`smartroute score "hi"`,
			`smartroute score --json "Write a function, then test it step by step"`,
			"smartroute score --file prompts.txt",
		},
	},
	{
		Name:  "assess",
		Args:  "[--input-tokens N | --input <text>] <answer>|-",
		Short: "Assess the confidence of a produced answer",
		Long: `Run the confidence detectors (hedging, short response, repetition,
refusal, incomplete, self-contradiction) over an answer and report the
signals, the 0-1 confidence score and whether promotion would trigger.`,
		Examples: []string{
			`smartroute assess "I'm not sure, maybe it works."`,
			`smartroute assess --input "explain quicksort in detail" - < answer.txt`,
		},
	},
	{
		Name:  "route",
		Args:  "[--answer <text>] [--resolve] <input>|-",
		Short: "Route an input and optionally check an answer for promotion",
		Long: `Score an input, choose the tier's primary model and print the
decision with its reason. With --answer the answer is assessed and the
decision promoted when confidence is too low. --resolve walks the tier's
primary and fallbacks and reports the first one whose provider API key is
set in the environment.`,
		Examples: []string{
			`smartroute route "hello"`,
			`smartroute route --answer "I cannot help with that." "design a database schema"`,
			`smartroute route --resolve --json "prove the theorem"`,
		},
	},
	{
		Name:  "config",
		Args:  "<show|check|init>",
		Short: "Show, check or create configuration",
		Long: `Inspect the routing configuration.

Subcommands:
  show   Print the effective routing config (--format yaml|json|toml)
  check  Load the config file, compile its pattern corpus and list warnings
  init   Write a default config file (format from the extension)`,
		Examples: []string{
			"smartroute config show --format json",
			"smartroute --config smartroute.yaml config check",
			"smartroute config init smartroute.toml",
		},
	},
	{
		Name:  "watch",
		Args:  "[--notify] [--interval <d>] [--metrics-addr <addr>]",
		Short: "Route newline-delimited requests from stdin with hot reload",
		Long: `Read one request per line from stdin and write one JSON response per
line. A line is either plain input text or a JSON object:

  {"input": "...", "requestId": "r1"}           route
  {"requestId": "r1", "answer": "..."}           check an answer, maybe promote
  {"report": {"model": "m", "error": "429 ..."}} record a model call outcome

The config file is watched (polling, or filesystem events with --notify)
and routing changes are applied without a restart. SIGHUP forces a reload.
Prometheus metrics are served on /metrics when an address is configured.
Maintenance jobs (health persistence, stats reports) run on the cron
schedules of the config's maintenance section.`,
		Examples: []string{
			"smartroute --config smartroute.yaml watch --notify < requests.jsonl",
			"smartroute watch --metrics-addr :9090",
		},
	},
	{
		Name:  "version",
		Short: "Print version and build information",
		Examples: []string{
			"smartroute version",
			"smartroute --version",
		},
	},
}

// PrintHelp prints top-level help (smartroute help).
func PrintHelp(w io.Writer, binaryName string) {
	fmt.Fprintf(w, `smartroute - complexity-based model tier routing

USAGE:
  %s [--config <file>] <command> [flags]

COMMANDS:
`, binaryName)

	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %-50s %s\n", c.Name, c.Args, c.Short)
	}

	fmt.Fprintf(w, `
GLOBAL FLAGS:
  --config <file>   Path to config file (.yaml, .json or .toml)
  --version         Print version information
  -h, --help        Show this help message

Run '%s help <command>' for detailed help on a specific command.
`, binaryName)
}

// PrintCommandHelp prints help for a specific subcommand. It reports false
// for an unknown command.
func PrintCommandHelp(w io.Writer, binaryName, cmdName string) bool {
	for _, c := range commands {
		if c.Name != cmdName {
			continue
		}
		fmt.Fprintf(w, "COMMAND: %s %s\n\n", binaryName, c.Name)
		if c.Args != "" {
			fmt.Fprintf(w, "USAGE:\n  %s %s %s\n\n", binaryName, c.Name, c.Args)
		}
		if c.Long != "" {
			fmt.Fprintf(w, "DESCRIPTION:\n  %s\n\n", c.Long)
		}
		if len(c.Examples) > 0 {
			fmt.Fprintln(w, "EXAMPLES:")
			for _, ex := range c.Examples {
				fmt.Fprintf(w, "  %s\n", ex)
			}
			fmt.Fprintln(w)
		}
		return true
	}
	return false
}

// CommandNames returns all valid command names (used for error messages).
func CommandNames() []string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name
	}
	return names
}
