package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/clawinfra/smartroute/internal/cli"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

func main() {
	os.Exit(run(os.Args[1:], cli.StdStreams()))
}

func run(args []string, s cli.Streams) int {
	// Global flags come before the subcommand.
	configPath := os.Getenv("SMARTROUTE_CONFIG")
	i := 0
flags:
	for ; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "-config":
			if i+1 >= len(args) {
				fmt.Fprintln(s.Err, "Error: --config requires a path")
				return 1
			}
			configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--version" || arg == "-version":
			printVersion(s)
			return 0
		case arg == "-h" || arg == "--help":
			cli.PrintHelp(s.Out, "smartroute")
			return 0
		default:
			break flags
		}
	}

	if i >= len(args) {
		cli.PrintHelp(s.Err, "smartroute")
		return 1
	}

	subCmd, rest := args[i], args[i+1:]
	switch subCmd {
	case "score":
		return cli.ScoreCommand(rest, configPath, s)
	case "assess":
		return cli.AssessCommand(rest, configPath, s)
	case "route":
		return cli.RouteCommand(rest, configPath, s)
	case "config":
		return cli.ConfigCommand(rest, configPath, s)
	case "watch":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		reload := make(chan os.Signal, 1)
		if sigs := reloadSignals(); len(sigs) > 0 {
			signal.Notify(reload, sigs...)
			defer signal.Stop(reload)
		}
		return cli.WatchCommand(ctx, rest, configPath, s, reload)
	case "version":
		printVersion(s)
		return 0
	case "help":
		if len(rest) == 0 {
			cli.PrintHelp(s.Out, "smartroute")
			return 0
		}
		if !cli.PrintCommandHelp(s.Out, "smartroute", rest[0]) {
			fmt.Fprintf(s.Err, "Unknown command: %s\n\nRun 'smartroute help' for a list of commands.\n", rest[0])
			return 1
		}
		return 0
	default:
		fmt.Fprintf(s.Err, "Unknown command: %s\n", subCmd)
		fmt.Fprintf(s.Err, "Available commands: %s\n", strings.Join(cli.CommandNames(), ", "))
		return 1
	}
}

func printVersion(s cli.Streams) {
	fmt.Fprintf(s.Out, "smartroute v%s (built %s)\n", version, buildTime)
}
