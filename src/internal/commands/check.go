package commands

import (
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/maksimkurb/keen-iprules/src/internal/config"
	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

func CreateCheckCommand() *CheckCommand {
	cc := &CheckCommand{
		fs:  flag.NewFlagSet("check", flag.ExitOnError),
		out: os.Stdout,
	}

	cc.fs.BoolVar(&cc.Dump, "dump", false, "Print the configuration with defaults filled in")

	return cc
}

// CheckCommand validates the configuration and prints the rules it produces
// without touching the filter store.
type CheckCommand struct {
	fs       *flag.FlagSet
	ctx      *AppContext
	cfg      *config.Config
	provider config.Provider
	out      io.Writer

	Dump bool
}

func (c *CheckCommand) Name() string {
	return c.fs.Name()
}

func (c *CheckCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx

	if err := c.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if c.provider == nil {
		c.provider = config.NewChainProvider(config.NewEnvProvider(), config.NewFileProvider(cfg))
	}
	return nil
}

func (c *CheckCommand) Run() error {
	if c.Dump {
		buf, err := c.cfg.SerializeConfig()
		if err != nil {
			return fmt.Errorf("failed to serialize configuration: %w", err)
		}
		fmt.Fprintln(c.out, buf.String())
	}

	fmt.Fprintf(c.out, "Configuration %s is valid\n", c.cfg.Path())
	fmt.Fprintf(c.out, "Backend: %s, grammar: %s\n", c.cfg.General.Backend, c.cfg.Grammar())

	enabled, err := c.provider.Get(config.KeyEnabled)
	if err != nil {
		if stderrors.Is(err, errors.ErrConfig) {
			fmt.Fprintf(c.out, "IP address rules are disabled: %v\n", err)
			return nil
		}
		return err
	}
	if !config.IsEnabled(enabled, c.cfg.Grammar()) {
		fmt.Fprintf(c.out, "IP address rules are disabled (enabled = %q)\n", enabled)
		return nil
	}

	settings, err := c.provider.Get(config.KeySettings)
	if err != nil {
		if stderrors.Is(err, errors.ErrConfig) {
			fmt.Fprintf(c.out, "IP address rules are disabled: %v\n", err)
			return nil
		}
		return err
	}

	parser := rules.NewParser(c.cfg.Grammar(), c.cfg.General.StrictActions)
	parser.Logger = c.ctx.logger()
	parsed, err := parser.Parse(settings)
	if err != nil {
		return fmt.Errorf("invalid rule settings: %w", err)
	}

	fmt.Fprintf(c.out, "Rules (%d):\n", len(parsed))
	for _, rule := range parsed {
		fmt.Fprintf(c.out, "  %-40s %s\n", rule.String(), rule.CanonicalName())
	}

	if hosts := c.cfg.Hostnames.Hosts; len(hosts) > 0 {
		fmt.Fprintf(c.out, "Host names (port %s, resolved at apply time):\n", c.cfg.Hostnames.Port)
		for _, host := range hosts {
			fmt.Fprintf(c.out, "  %s\n", host)
		}
	}

	return nil
}
