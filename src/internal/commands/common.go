package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/maksimkurb/keen-iprules/src/internal/config"
	"github.com/maksimkurb/keen-iprules/src/internal/engine"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/service"
)

type Runner interface {
	Init(args []string, globalArgs *AppContext) error
	Run() error
	Name() string
}

type AppContext struct {
	ConfigPath string
	Verbose    bool
	// Logger defaults to log.Default().
	Logger *log.Logger
}

func (c *AppContext) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// loadAndValidateConfigOrFail loads configuration from file and validates it,
// including the rule settings it carries.
func loadAndValidateConfigOrFail(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	if err := cfg.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return cfg, nil
}

func newServiceManager(ctx *AppContext, cfg *config.Config, metrics *engine.Metrics) (*service.ServiceManager, error) {
	sm, err := service.NewServiceManager(cfg, service.Options{
		ConfigPath: ctx.ConfigPath,
		Logger:     ctx.logger(),
		Metrics:    metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service manager: %w", err)
	}
	return sm, nil
}

// printResult writes a human-readable summary of a pass.
func printResult(w io.Writer, res *engine.Result) {
	if res == nil {
		return
	}
	if !res.Changed() && len(res.Failures) == 0 {
		fmt.Fprintln(w, "Nothing changed")
		return
	}

	section := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(w, "%s (%d):\n", title, len(names))
		for _, name := range names {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	section("Created", res.Created)
	section("Deleted", res.Deleted)
	section("Disabled", res.Disabled)
	section("Re-enabled", res.Enabled)

	if len(res.Failures) > 0 {
		fmt.Fprintf(w, "Failed (%d):\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %s\n", strings.TrimSpace(f.Error()))
		}
	}
}
