package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/maksimkurb/keen-iprules/src/internal/service"
)

func CreateUndoCommand() *UndoCommand {
	gc := &UndoCommand{
		fs:  flag.NewFlagSet("undo", flag.ExitOnError),
		out: os.Stdout,
	}
	return gc
}

// UndoCommand deletes every rule carrying the naming prefix and re-enables
// the rules a previous run disabled.
type UndoCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	sm  *service.ServiceManager
	out io.Writer
}

func (g *UndoCommand) Name() string {
	return g.fs.Name()
}

func (g *UndoCommand) Init(args []string, ctx *AppContext) error {
	g.ctx = ctx

	if err := g.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}

	if g.sm, err = newServiceManager(ctx, cfg, nil); err != nil {
		return err
	}

	return nil
}

func (g *UndoCommand) Run() error {
	g.ctx.logger().Infof("Removing all IP address rules...")

	res, err := g.sm.RunOnce(context.Background(), service.PassReset)
	printResult(g.out, res)
	if err != nil {
		return fmt.Errorf("failed to undo rules: %w", err)
	}

	g.ctx.logger().Infof("Undo completed successfully")
	return nil
}
