package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"monthgrid/internal/config"
	appLog "monthgrid/internal/log"
)

const version = "0.1.0"

// flagConfig holds the flags shared by every subcommand.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	start      string
	end        string
}

func (f *flagConfig) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "./monthgrid.yaml", "Path to config file (.yaml or .toml)")
	fs.StringVar(&f.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides config if set)")
	fs.StringVar(&f.start, "start", "", "First date of the calendar, YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "Last date of the calendar, YYYY-MM-DD")
}

func usage() {
	fmt.Fprintf(os.Stderr, `monthgrid %s

Usage:
  monthgrid [flags]                 interactive month grid in the terminal
  monthgrid serve [flags]           HTTP API and HTML grid with scheduled event refresh
  monthgrid print [-section N]      print one month to stdout
  monthgrid snapshot [-out FILE]    render the grid page to PNG with headless Chromium
  monthgrid hash-password           prompt for a password and print its argon2id hash

Run "monthgrid <command> -h" for the flags of a command.
`, version)
}

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "":
		err = runTUI(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "print":
		err = runPrint(args)
	case "snapshot":
		err = runSnapshot(ctx, args)
	case "hash-password":
		err = runHashPassword(args)
	case "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) && !errors.Is(err, context.Canceled) {
		appLog.Error("monthgrid failed", err, "command", cmd)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f flagConfig) (*config.Config, error) {
	conf, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", f.configPath, err)
	}
	if f.listen != "" {
		conf.Listen = f.listen
	}
	if f.logLevel != "" {
		conf.LogLevel = f.logLevel
	}
	if f.start != "" {
		conf.Range.Start = f.start
	}
	if f.end != "" {
		conf.Range.End = f.end
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if lvl, ok := appLog.ParseLevel(conf.LogLevel); ok {
		appLog.SetLevel(lvl)
	}
	return conf, nil
}
