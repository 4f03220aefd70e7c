package commands

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/api"
	"github.com/maksimkurb/keen-iprules/src/internal/config"
	"github.com/maksimkurb/keen-iprules/src/internal/engine"
	"github.com/maksimkurb/keen-iprules/src/internal/service"
)

func CreateServiceCommand() *ServiceCommand {
	sc := &ServiceCommand{
		fs: flag.NewFlagSet("service", flag.ExitOnError),
	}

	sc.fs.BoolVar(&sc.NoAPI, "no-api", false, "Do not start the REST API even when it is enabled in the configuration")

	return sc
}

// ServiceCommand runs the reconciliation service until SIGINT or SIGTERM.
type ServiceCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
	ctx *AppContext

	NoAPI bool

	serviceMgr    *service.ServiceManager
	apiServer     *api.Server
	apiSupervisor *Supervisor
}

func (s *ServiceCommand) Name() string {
	return s.fs.Name()
}

func (s *ServiceCommand) Init(args []string, ctx *AppContext) error {
	s.ctx = ctx

	if err := s.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	s.cfg = cfg

	if s.serviceMgr, err = newServiceManager(ctx, cfg, engine.DefaultMetrics()); err != nil {
		return err
	}

	return nil
}

func (s *ServiceCommand) Run() error {
	logger := s.ctx.logger()
	logger.Infof("Starting keen-iprules service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	if err := s.serviceMgr.Start(); err != nil {
		return err
	}
	if st := s.serviceMgr.Status(); st.LastError != "" {
		logger.Warnf("Startup pass failed: %s. The service keeps running; fix the configuration and send SIGHUP.", st.LastError)
	}

	if s.cfg.API.Enabled && !s.NoAPI {
		if err := s.startAPIServer(ctx); err != nil {
			logger.Errorf("Failed to start API server: %v", err)
		}
	} else {
		logger.Infof("REST API is disabled")
	}

	logger.Infof("Service started successfully.")
	logger.Infof("Send SIGHUP to reload configuration, SIGUSR1 to re-apply rules")

	for sig := range sigChan {
		switch sig {
		case syscall.SIGHUP:
			logger.Infof("Received SIGHUP signal, reloading configuration...")
			if err := s.serviceMgr.Reload(); err != nil {
				logger.Errorf("Failed to reload configuration: %v", err)
			} else {
				logger.Infof("Configuration reloaded successfully")
			}

		case syscall.SIGUSR1:
			logger.Infof("Received SIGUSR1 signal, re-applying rules...")
			if err := s.serviceMgr.ApplyNow(); err != nil {
				logger.Errorf("Failed to apply rules: %v", err)
			}

		case syscall.SIGINT, syscall.SIGTERM:
			logger.Infof("Received signal %v, shutting down...", sig)
			return s.shutdown()
		}
	}
	return nil
}

// startAPIServer starts the HTTP API server under a supervisor.
func (s *ServiceCommand) startAPIServer(ctx context.Context) error {
	logger := s.ctx.logger().WithPrefix("api")

	router := api.NewRouter(s.serviceMgr, api.RouterOptions{
		Logger:        logger,
		Grammar:       s.cfg.Grammar(),
		StrictActions: s.cfg.General.StrictActions,
	})
	s.apiServer = api.NewServer(s.cfg.API.Listen, router, logger)

	logger.Infof("Access restricted to loopback and private networks")

	s.apiSupervisor = NewSupervisor(SupervisorConfig{
		Name:       "API server",
		Backoff:    2 * time.Second,
		MaxBackoff: 30 * time.Second,
		Logger:     logger,
	}, func(runCtx context.Context) error {
		return s.apiServer.ListenAndServe()
	})

	return s.apiSupervisor.Start(ctx)
}

// shutdown stops the API server and then the service, which resets the
// filter store.
func (s *ServiceCommand) shutdown() error {
	logger := s.ctx.logger()
	logger.Infof("Shutting down keen-iprules service...")

	if s.apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Error during API server shutdown: %v", err)
		}
		cancel()
	}
	if s.apiSupervisor != nil {
		if err := s.apiSupervisor.Stop(); err != nil {
			logger.Errorf("Failed to stop API supervisor: %v", err)
		}
	}

	if err := s.serviceMgr.Stop(); err != nil {
		logger.Errorf("Failed to stop service: %v", err)
		return err
	}

	logger.Infof("Service stopped successfully")
	return nil
}
