package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/config"
	"github.com/maksimkurb/keen-iprules/src/internal/engine"
	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/resolver"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/store"
)

const (
	stopTimeout    = 30 * time.Second
	resolveTimeout = 30 * time.Second
)

// ErrNotRunning is returned by requests sent to a stopped service.
var ErrNotRunning = stderrors.New("service is not running")

// Options configure a ServiceManager. Zero values select the production behavior.
type Options struct {
	// ConfigPath is re-read on Reload and watched for changes. Without it
	// Reload re-applies the configuration the manager was created with.
	ConfigPath string
	Logger     *log.Logger
	Metrics    *engine.Metrics

	// Store replaces the backend selected by the configuration.
	Store store.FilterStore
	// Resolver replaces the DNS resolver built from the hostnames section.
	Resolver resolver.Resolver
	// Provider replaces the environment and file providers.
	Provider config.Provider
	// LoadConfig defaults to config.LoadConfig followed by ValidateConfig.
	LoadConfig func(path string) (*config.Config, error)

	// RefreshInterval overrides hostnames.refresh_interval_minutes.
	RefreshInterval time.Duration
	// ConfigCheckInterval overrides general.config_check_interval_seconds.
	ConfigCheckInterval time.Duration
}

type request struct {
	kind  string
	reply chan error
}

// ServiceManager manages the lifecycle of the reconciliation service and
// serializes all passes on one goroutine.
type ServiceManager struct {
	mu   sync.RWMutex
	opts Options
	log  *log.Logger

	cfg         *config.Config
	hasher      *config.ConfigHasher
	store       store.FilterStore
	storeKey    string
	engine      *engine.Engine
	poller      *resolver.HostnamePoller
	resolverKey string

	enabled   bool
	suspended bool
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	requests  chan request
	status    Status
}

// NewServiceManager creates a stopped service for cfg.
func NewServiceManager(cfg *config.Config, opts Options) (*ServiceManager, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("configuration is required", nil)
	}
	cfg.ApplyDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = loadAndValidateConfig
	}

	sm := &ServiceManager{
		opts: opts,
		log:  logger.WithPrefix("service"),
		cfg:  cfg,
	}
	if opts.ConfigPath != "" {
		sm.hasher = config.NewConfigHasher(opts.ConfigPath)
	}

	s, e, err := sm.newEngine(cfg)
	if err != nil {
		return nil, err
	}
	sm.store, sm.storeKey, sm.engine = s, storeKey(cfg), e
	sm.poller, sm.resolverKey = sm.newPoller(cfg), resolverKey(cfg)
	return sm, nil
}

func loadAndValidateConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateConfig(); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err)
	}
	return cfg, nil
}

func (sm *ServiceManager) newEngine(cfg *config.Config) (store.FilterStore, *engine.Engine, error) {
	s := sm.opts.Store
	if s == nil {
		var err error
		if s, err = NewFilterStore(cfg, sm.log); err != nil {
			return nil, nil, err
		}
	}

	opts := []engine.Option{
		engine.WithLogger(sm.log.WithPrefix("engine")),
		engine.WithParser(rules.NewParser(cfg.Grammar(), cfg.General.StrictActions)),
	}
	if sm.opts.Metrics != nil {
		opts = append(opts, engine.WithMetrics(sm.opts.Metrics))
	}
	return s, engine.New(s, opts...), nil
}

func (sm *ServiceManager) newPoller(cfg *config.Config) *resolver.HostnamePoller {
	r := sm.opts.Resolver
	if r == nil {
		r = newResolver(cfg, sm.log)
	}
	return resolver.NewHostnamePoller(r, cfg.Hostnames.Hosts, sm.log)
}

// IsRunning returns true if the service is currently running
func (sm *ServiceManager) IsRunning() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.running
}

// Start runs the startup pass and then keeps serving triggers in a goroutine.
// It returns once the startup pass has finished.
func (sm *ServiceManager) Start() error {
	sm.mu.Lock()
	if sm.running {
		sm.mu.Unlock()
		return fmt.Errorf("service is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sm.cancel = cancel
	sm.done = make(chan struct{})
	sm.requests = make(chan request)
	sm.running = true
	sm.mu.Unlock()

	ready := make(chan struct{})
	go sm.run(ctx, ready)
	<-ready

	sm.log.Infof("Service started")
	return nil
}

// Stop resets the filter store and stops the service goroutine.
func (sm *ServiceManager) Stop() error {
	sm.mu.Lock()
	if !sm.running {
		sm.mu.Unlock()
		return ErrNotRunning
	}
	cancel := sm.cancel
	done := sm.done
	sm.mu.Unlock()

	sm.log.Infof("Stopping service...")
	cancel()

	var err error
	select {
	case <-done:
	case <-time.After(stopTimeout):
		err = fmt.Errorf("timeout waiting for service to stop")
	}

	sm.mu.Lock()
	sm.running = false
	sm.mu.Unlock()

	if err == nil {
		sm.log.Infof("Service stopped")
	}
	return err
}

// Reload re-reads the configuration and applies it, or resets when the
// feature is disabled. It waits for the pass to finish.
func (sm *ServiceManager) Reload() error {
	return sm.submit(PassReload)
}

// ApplyNow re-resolves host names and applies the current configuration.
func (sm *ServiceManager) ApplyNow() error {
	return sm.submit(PassApply)
}

// ResetNow removes every change the engine made. Periodic refreshes are
// paused until the next Reload or ApplyNow.
func (sm *ServiceManager) ResetNow() error {
	return sm.submit(PassReset)
}

// RunOnce rebuilds the ledger from the filter store and runs a single apply
// or reset pass without starting the service loop. Applied rules stay in
// place after it returns.
func (sm *ServiceManager) RunOnce(ctx context.Context, kind string) (*engine.Result, error) {
	if sm.IsRunning() {
		return nil, fmt.Errorf("service is already running")
	}
	if kind != PassApply && kind != PassReset {
		return nil, errors.NewInternalError(fmt.Sprintf("pass %q cannot run once", kind), nil)
	}

	if err := sm.engineRef().Recover(); err != nil {
		return nil, err
	}
	err := sm.pass(ctx, kind)

	sm.mu.RLock()
	res := sm.status.LastResult
	sm.mu.RUnlock()
	return res, err
}

// Rules lists the entries of the filter store.
func (sm *ServiceManager) Rules() ([]store.Entry, error) {
	sm.mu.RLock()
	s := sm.store
	sm.mu.RUnlock()
	return s.ListRules()
}

// Namer returns the namer of the running engine.
func (sm *ServiceManager) Namer() *rules.Namer {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.engine.Namer()
}

// Status returns a snapshot of the service state.
func (sm *ServiceManager) Status() Status {
	sm.mu.RLock()
	st := sm.status
	st.Running = sm.running
	st.Enabled = sm.enabled
	st.Suspended = sm.suspended
	st.Backend = sm.cfg.General.Backend
	e, poller := sm.engine, sm.poller
	sm.mu.RUnlock()

	st.Hosts = poller.Hosts()
	st.Ledger = e.Ledger()
	if sm.hasher != nil {
		st.ConfigHash = sm.hasher.GetActiveConfigHash()
	}
	return st
}

func (sm *ServiceManager) submit(kind string) error {
	sm.mu.RLock()
	running, requests, done := sm.running, sm.requests, sm.done
	sm.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	req := request{kind: kind, reply: make(chan error, 1)}
	select {
	case requests <- req:
	case <-done:
		return ErrNotRunning
	}
	select {
	case err := <-req.reply:
		return err
	case <-done:
		return ErrNotRunning
	}
}

// run is the main service loop (runs in a goroutine)
func (sm *ServiceManager) run(ctx context.Context, ready chan<- struct{}) {
	defer close(sm.done)

	sm.pass(ctx, PassStart)
	close(ready)

	refreshInterval := sm.refreshInterval()
	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	var configCheck <-chan time.Time
	if sm.hasher != nil {
		ticker := time.NewTicker(sm.configCheckInterval())
		defer ticker.Stop()
		configCheck = ticker.C
	}

	sm.log.Infof("Refreshing host names every %v", refreshInterval)

	for {
		select {
		case <-ctx.Done():
			sm.pass(context.Background(), PassStop)
			return

		case req := <-sm.requests:
			req.reply <- sm.pass(ctx, req.kind)
			if req.kind == PassReload {
				if interval := sm.refreshInterval(); interval != refreshInterval {
					refreshInterval = interval
					refresh.Reset(interval)
					sm.log.Infof("Refreshing host names every %v", refreshInterval)
				}
			}

		case <-refresh.C:
			sm.mu.RLock()
			suspended := sm.suspended
			sm.mu.RUnlock()
			if suspended {
				sm.log.Debugf("Refresh skipped: paused by reset")
				continue
			}
			sm.pass(ctx, PassRefresh)

		case <-configCheck:
			if sm.configChanged() {
				sm.log.Infof("Configuration change detected, reloading...")
				sm.pass(ctx, PassReload)
				if interval := sm.refreshInterval(); interval != refreshInterval {
					refreshInterval = interval
					refresh.Reset(interval)
				}
			}
		}
	}
}

// pass runs one pass and records its outcome. Panics are recovered and
// reported as internal errors.
func (sm *ServiceManager) pass(ctx context.Context, kind string) (err error) {
	var res *engine.Result

	defer func() {
		if recovered := recover(); recovered != nil {
			err = errors.NewInternalError(fmt.Sprintf("%s pass panicked: %v", kind, recovered), nil)
			sm.log.Errorf("%v", err)
		}
		sm.record(kind, res, err)
	}()

	switch kind {
	case PassStart:
		res, err = sm.startup(ctx)
	case PassRefresh:
		res, err = sm.sync(ctx)
	case PassReload:
		res, err = sm.reload(ctx)
	case PassApply:
		sm.setSuspended(false)
		res, err = sm.sync(ctx)
	case PassReset:
		sm.setSuspended(true)
		res, err = sm.engineRef().Reset()
	case PassStop:
		res, err = sm.engineRef().Reset()
	default:
		err = errors.NewInternalError(fmt.Sprintf("unknown pass %q", kind), nil)
	}

	if err != nil {
		sm.log.Errorf("%s pass failed: %v", kind, err)
	}
	return err
}

func (sm *ServiceManager) record(kind string, res *engine.Result, err error) {
	now := time.Now()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.status.LastPass = kind
	sm.status.LastPassAt = &now
	sm.status.LastResult = res
	sm.status.LastError = ""
	if err != nil {
		sm.status.LastError = err.Error()
	}
	sm.status.Passes++
}

// startup rebuilds the ledger from the store, clears leftovers and applies.
func (sm *ServiceManager) startup(ctx context.Context) (*engine.Result, error) {
	e := sm.engineRef()
	if err := e.Recover(); err != nil {
		sm.log.Warnf("Failed to recover previous state: %v", err)
	}
	if _, err := e.Reset(); err != nil {
		sm.log.Warnf("Startup cleanup incomplete: %v", err)
	}
	sm.markActiveConfig()
	return sm.sync(ctx)
}

// sync applies settings plus host name rules, or resets when disabled.
func (sm *ServiceManager) sync(ctx context.Context) (*engine.Result, error) {
	e := sm.engineRef()

	settings, enabled, err := sm.readSettings()
	if err != nil {
		if !stderrors.Is(err, errors.ErrConfig) {
			return nil, err
		}
		sm.log.Warnf("Rule settings unavailable, treating the feature as disabled: %v", err)
		enabled = false
	}
	sm.setEnabled(enabled)

	if !enabled {
		if ledger := e.Ledger(); len(ledger.CreatedRuleNames)+len(ledger.DisabledRuleNames) == 0 {
			sm.log.Debugf("Feature disabled, nothing to reset")
			return &engine.Result{}, nil
		}
		sm.log.Infof("Feature disabled, resetting")
		return e.Reset()
	}

	desired, err := e.Parse(settings)
	if err != nil {
		return nil, err
	}

	resolveCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	resolved := sm.pollerRef().Refresh(resolveCtx)
	desired = append(desired, rules.HostnameRules(sm.configRef().Hostnames.Port, resolved)...)

	return e.Apply(desired, true)
}

// readSettings returns the settings string and whether the feature is on.
func (sm *ServiceManager) readSettings() (string, bool, error) {
	cfg := sm.configRef()
	p := sm.provider(cfg)

	value, err := p.Get(config.KeyEnabled)
	if err != nil {
		return "", false, err
	}
	if !config.IsEnabled(value, cfg.Grammar()) {
		return "", false, nil
	}
	settings, err := p.Get(config.KeySettings)
	if err != nil {
		return "", false, err
	}
	return settings, true, nil
}

func (sm *ServiceManager) provider(cfg *config.Config) config.Provider {
	if sm.opts.Provider != nil {
		return sm.opts.Provider
	}
	return config.NewChainProvider(config.NewEnvProvider(), config.NewFileProvider(cfg))
}

// reload re-reads the configuration file. A configuration that fails to load
// keeps the previous one in effect.
func (sm *ServiceManager) reload(ctx context.Context) (*engine.Result, error) {
	if sm.opts.ConfigPath != "" {
		cfg, err := sm.opts.LoadConfig(sm.opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		if err := sm.swapConfig(cfg); err != nil {
			return nil, err
		}
	}
	sm.markActiveConfig()
	sm.setSuspended(false)
	return sm.sync(ctx)
}

// swapConfig installs cfg. When the backend changes the old store is reset
// first, since the new engine starts with an empty ledger.
func (sm *ServiceManager) swapConfig(cfg *config.Config) error {
	cfg.ApplyDefaults()

	if sm.opts.Store == nil && storeKey(cfg) != sm.storeKey {
		sm.log.Infof("Filter store configuration changed, resetting the previous backend")
		if _, err := sm.engineRef().Reset(); err != nil {
			sm.log.Warnf("Previous backend reset incomplete: %v", err)
		}

		s, e, err := sm.newEngine(cfg)
		if err != nil {
			return err
		}
		sm.mu.Lock()
		sm.store, sm.storeKey, sm.engine = s, storeKey(cfg), e
		sm.mu.Unlock()
	} else {
		sm.engineRef().SetParser(rules.NewParser(cfg.Grammar(), cfg.General.StrictActions))
	}

	if sm.opts.Resolver == nil && resolverKey(cfg) != sm.resolverKey {
		poller := sm.newPoller(cfg)
		sm.mu.Lock()
		sm.poller, sm.resolverKey = poller, resolverKey(cfg)
		sm.mu.Unlock()
	} else {
		sm.pollerRef().SetHosts(cfg.Hostnames.Hosts)
	}

	sm.mu.Lock()
	sm.cfg = cfg
	sm.mu.Unlock()
	return nil
}

func (sm *ServiceManager) configChanged() bool {
	current, err := sm.hasher.UpdateCurrentConfigHash()
	if err != nil {
		sm.log.Debugf("Config check failed: %v", err)
		return false
	}
	return current != sm.hasher.GetActiveConfigHash()
}

func (sm *ServiceManager) markActiveConfig() {
	if sm.hasher == nil {
		return
	}
	hash, err := sm.hasher.CalculateHash(sm.configRef())
	if err != nil {
		sm.log.Warnf("Failed to hash configuration: %v", err)
		return
	}
	sm.hasher.SetActiveConfigHash(hash)
}

func (sm *ServiceManager) refreshInterval() time.Duration {
	if sm.opts.RefreshInterval > 0 {
		return sm.opts.RefreshInterval
	}
	cfg := sm.configRef()
	minutes := config.RefreshIntervalMinutes(sm.provider(cfg), config.DefaultRefreshIntervalMinutes)
	return time.Duration(minutes) * time.Minute
}

func (sm *ServiceManager) configCheckInterval() time.Duration {
	if sm.opts.ConfigCheckInterval > 0 {
		return sm.opts.ConfigCheckInterval
	}
	return time.Duration(sm.configRef().General.ConfigCheckIntervalSeconds) * time.Second
}

func (sm *ServiceManager) engineRef() *engine.Engine {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.engine
}

func (sm *ServiceManager) pollerRef() *resolver.HostnamePoller {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.poller
}

func (sm *ServiceManager) configRef() *config.Config {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.cfg
}

func (sm *ServiceManager) setEnabled(enabled bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.enabled = enabled
}

func (sm *ServiceManager) setSuspended(suspended bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.suspended = suspended
}
