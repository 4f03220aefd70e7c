package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/maksimkurb/keen-iprules/src/internal/config"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/service"
	"github.com/maksimkurb/keen-iprules/src/internal/store"
)

func CreateListCommand() *ListCommand {
	lc := &ListCommand{
		fs:  flag.NewFlagSet("list", flag.ExitOnError),
		out: os.Stdout,
	}

	lc.fs.BoolVar(&lc.OwnedOnly, "owned", false, "Only list rules created by keen-iprules")

	return lc
}

// ListCommand prints the entries of the configured filter store.
type ListCommand struct {
	fs    *flag.FlagSet
	ctx   *AppContext
	cfg   *config.Config
	store store.FilterStore
	out   io.Writer

	OwnedOnly bool
}

func (l *ListCommand) Name() string {
	return l.fs.Name()
}

func (l *ListCommand) Init(args []string, ctx *AppContext) error {
	l.ctx = ctx

	if err := l.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	l.cfg = cfg

	if l.store == nil {
		if l.store, err = service.NewFilterStore(cfg, ctx.logger()); err != nil {
			return err
		}
	}
	return nil
}

func (l *ListCommand) Run() error {
	entries, err := l.store.ListRules()
	if err != nil {
		return fmt.Errorf("failed to list filter rules: %w", err)
	}

	namer := rules.DefaultNamer
	tw := tabwriter.NewWriter(l.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNED\tENABLED\tPORT\tREMOTE\tACTION\tNAME")
	for _, e := range entries {
		owned := namer.Owns(e.Name)
		if l.OwnedOnly && !owned {
			continue
		}
		action := string(e.Action)
		if action == "" {
			action = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", yesNo(owned), yesNo(e.Enabled), e.LocalPort, e.RemoteAddress, action, e.Name)
	}
	return tw.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
