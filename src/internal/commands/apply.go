package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/service"
)

func CreateApplyCommand() *ApplyCommand {
	gc := &ApplyCommand{
		fs:  flag.NewFlagSet("apply", flag.ExitOnError),
		out: os.Stdout,
	}

	gc.fs.DurationVar(&gc.Timeout, "timeout", 2*time.Minute, "Give up when the pass takes longer than this")

	return gc
}

// ApplyCommand applies the configured rules once and exits. The rules stay
// in place until "undo" or the next apply.
type ApplyCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	sm  *service.ServiceManager
	out io.Writer

	Timeout time.Duration
}

func (g *ApplyCommand) Name() string {
	return g.fs.Name()
}

func (g *ApplyCommand) Init(args []string, ctx *AppContext) error {
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

func (g *ApplyCommand) Run() error {
	runCtx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()

	res, err := g.sm.RunOnce(runCtx, service.PassApply)
	printResult(g.out, res)
	if err != nil {
		return fmt.Errorf("failed to apply rules: %w", err)
	}

	if !g.sm.Status().Enabled {
		g.ctx.logger().Infof("IP address rules are disabled, previous rules were removed")
	}
	return nil
}
