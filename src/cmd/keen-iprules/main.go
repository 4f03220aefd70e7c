package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/maksimkurb/keen-iprules/src/internal/api"
	"github.com/maksimkurb/keen-iprules/src/internal/commands"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

func main() {
	ctx := &commands.AppContext{}

	flag.StringVar(&ctx.ConfigPath, "config", "/opt/etc/keen-iprules/keen-iprules.toml", "Path to configuration file")
	flag.BoolVar(&ctx.Verbose, "verbose", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Keenetic IP address access rules manager\n")
		fmt.Fprintf(os.Stderr, "Version: %s (Commit: %s, Date: %s)\n\n", version, commit, date)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  service                 Run as a service/daemon (applies rules, refreshes host names, REST API)\n")
		fmt.Fprintf(os.Stderr, "  apply                   Apply the configured rules once\n")
		fmt.Fprintf(os.Stderr, "  undo                    Remove created rules and re-enable disabled ones (reverts \"apply\")\n")
		fmt.Fprintf(os.Stderr, "  check                   Validate the configuration and print the resulting rules\n")
		fmt.Fprintf(os.Stderr, "  list                    List filter rules\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if ctx.Verbose {
		log.SetVerbose(true)
	}

	api.Version, api.Commit, api.Date = version, commit, date

	if _, err := os.Stat(ctx.ConfigPath); errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Configuration file not found: %s", ctx.ConfigPath)
	}

	cmds := []commands.Runner{
		commands.CreateServiceCommand(),
		commands.CreateApplyCommand(),
		commands.CreateUndoCommand(),
		commands.CreateCheckCommand(),
		commands.CreateListCommand(),
	}

	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	subcommand := args[0]
	for _, cmd := range cmds {
		if cmd.Name() == subcommand {
			if err := cmd.Init(args[1:], ctx); err != nil {
				log.Fatalf("Failed to initialize command: %v", err)
			}

			if err := cmd.Run(); err != nil {
				log.Fatalf("Failed to run command: %v", err)
			}

			os.Exit(0)
		}
	}

	log.Fatalf("Unknown subcommand: %s", subcommand)
}
