package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/store"
)

// Engine reconciles desired rules against a filter store. Passes are serialized.
type Engine struct {
	mu      sync.Mutex
	store   store.FilterStore
	parser  *rules.Parser
	namer   *rules.Namer
	log     *log.Logger
	metrics *Metrics
	ledger  *Ledger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is the process-wide logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithParser sets the parser used by ApplySettings.
func WithParser(p *rules.Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithNamer sets the namer that renders and recognizes owned rule names.
func WithNamer(n *rules.Namer) Option {
	return func(e *Engine) { e.namer = n }
}

// WithMetrics sets the Prometheus collectors. Without it no metrics are recorded.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine with an empty ledger.
func New(s store.FilterStore, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		namer:  rules.DefaultNamer,
		ledger: newLedger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = log.Default()
	}
	if e.parser == nil {
		e.parser = rules.NewParser(rules.GrammarExplicit, false)
	}
	if e.parser.Logger == nil {
		e.parser.Logger = e.log
	}
	return e
}

// Ledger returns a copy of the ownership ledger.
func (e *Engine) Ledger() LedgerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.snapshot()
}

// Namer returns the namer the engine renders rule names with.
func (e *Engine) Namer() *rules.Namer {
	return e.namer
}

// SetParser replaces the parser used by ApplySettings.
func (e *Engine) SetParser(p *rules.Parser) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Logger == nil {
		p.Logger = e.log
	}
	e.parser = p
}

// Parse converts settings into rules with the engine's parser.
func (e *Engine) Parse(settings string) ([]rules.Rule, error) {
	e.mu.Lock()
	parser := e.parser
	e.mu.Unlock()
	return parser.Parse(settings)
}

// ApplySettings parses settings and applies the result. A parse error aborts
// the pass before the filter store is touched.
func (e *Engine) ApplySettings(settings string, deleteOthers bool) (*Result, error) {
	desired, err := e.Parse(settings)
	if err != nil {
		e.log.Errorf("Rejected rule settings: %v", err)
		e.metrics.observePass("apply", time.Now(), nil, err)
		return nil, err
	}
	return e.Apply(desired, deleteOthers)
}

// Apply makes the filter store hold exactly one enabled entry per desired
// rule. Enabled foreign entries on the ports the desired rules use are
// disabled. When deleteOthers is set, entries this engine created earlier and
// that are no longer desired are deleted.
//
// Store failures on individual rules do not stop the pass; they are collected
// in the result and returned together as a StoreError.
func (e *Engine) Apply(desired []rules.Rule, deleteOthers bool) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res, err := e.apply(desired, deleteOthers)
	e.metrics.observePass("apply", start, res, err)
	e.metrics.observeLedger(e.ledger)
	return res, err
}

func (e *Engine) apply(desired []rules.Rule, deleteOthers bool) (*Result, error) {
	entries, err := e.store.ListRules()
	if err != nil {
		e.log.Errorf("Failed to list filter rules: %v", err)
		return nil, errors.NewStoreError("failed to list filter rules", err)
	}

	res := &Result{}
	e.disableConflicting(desired, entries, res)

	present := make(map[string]*presence)
	for _, entry := range entries {
		p := present[entry.Name]
		if p == nil {
			p = &presence{}
			present[entry.Name] = p
		}
		p.count++
		if entry.Enabled {
			p.enabled = true
		}
	}

	previous := e.ledger.Created.Names()
	leftover := make(map[string]bool, len(previous))
	for _, name := range previous {
		leftover[name] = true
	}
	e.ledger.Created.Clear()

	for _, rule := range desired {
		name := e.namer.Name(rule)
		delete(leftover, name)
		if e.ledger.Created.Contains(name) {
			continue
		}

		p, exists := present[name]
		switch {
		case !exists:
			if err := e.store.AddRule(name, rule.Action, rule.Port, rule.RemoteAddress); err != nil {
				e.log.Warnf("Failed to create rule %q: %v", name, err)
				res.fail(OpAdd, name, err)
				continue
			}
			res.Created = append(res.Created, name)
		case p.count > 1:
			e.log.Infof("Rule %q is present %d times, recreating it once", name, p.count)
			if err := e.store.RemoveRule(name); err != nil && !store.IsNotFound(err) {
				res.fail(OpRemove, name, err)
				e.ledger.Created.Add(name)
				continue
			}
			if err := e.store.AddRule(name, rule.Action, rule.Port, rule.RemoteAddress); err != nil {
				e.log.Warnf("Failed to recreate rule %q: %v", name, err)
				res.fail(OpAdd, name, err)
				continue
			}
		case !p.enabled:
			if err := e.store.SetEnabled(name, true); err != nil {
				e.log.Warnf("Failed to enable rule %q: %v", name, err)
				res.fail(OpEnable, name, err)
			} else {
				res.Enabled = append(res.Enabled, name)
			}
		}
		e.ledger.Created.Add(name)
	}

	if deleteOthers {
		for _, name := range previous {
			if !leftover[name] {
				continue
			}
			err := e.store.RemoveRule(name)
			switch {
			case err == nil:
				res.Deleted = append(res.Deleted, name)
			case store.IsNotFound(err):
				e.log.Debugf("Obsolete rule %q is already gone", name)
			default:
				e.log.Warnf("Failed to delete obsolete rule %q: %v", name, err)
				res.fail(OpRemove, name, err)
				e.ledger.Created.Add(name)
			}
		}
	}

	e.logResult("Applied", res)
	return res, res.Err()
}

type presence struct {
	count   int
	enabled bool
}

// disableConflicting disables enabled foreign entries on every concrete port
// the desired rules reference.
func (e *Engine) disableConflicting(desired []rules.Rule, entries []store.Entry, res *Result) {
	ports := make(map[string]bool)
	for _, port := range rules.Ports(desired) {
		if port != rules.AnyPort {
			ports[port] = true
		}
	}
	if len(ports) == 0 {
		return
	}

	handled := make(map[string]bool)
	for _, entry := range entries {
		if !entry.Enabled || !ports[entry.LocalPort] || e.namer.Owns(entry.Name) || handled[entry.Name] {
			continue
		}
		handled[entry.Name] = true

		if err := e.store.SetEnabled(entry.Name, false); err != nil {
			if store.IsNotFound(err) {
				e.log.Debugf("Rule %q disappeared before it could be disabled", entry.Name)
				continue
			}
			e.log.Warnf("Failed to disable rule %q: %v", entry.Name, err)
			res.fail(OpDisable, entry.Name, err)
			continue
		}
		res.Disabled = append(res.Disabled, entry.Name)
		if e.ledger.Disabled.Add(entry.Name) {
			e.log.Infof("Disabled conflicting rule %q on port %s", entry.Name, entry.LocalPort)
		}
	}
}

// Reset re-enables every rule the engine disabled and deletes every rule it
// created, including leftovers of earlier processes recognized by the name
// prefix. The ledger is empty afterwards even when some calls failed.
func (e *Engine) Reset() (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res := e.reset()
	err := res.Err()
	e.metrics.observePass("reset", start, res, err)
	e.metrics.observeLedger(e.ledger)
	return res, err
}

func (e *Engine) reset() *Result {
	res := &Result{}

	for _, name := range e.ledger.Disabled.Names() {
		err := e.store.SetEnabled(name, true)
		switch {
		case err == nil:
			res.Enabled = append(res.Enabled, name)
		case store.IsNotFound(err):
			e.log.Debugf("Disabled rule %q no longer exists", name)
		default:
			e.log.Warnf("Failed to re-enable rule %q: %v", name, err)
			res.fail(OpEnable, name, err)
		}
	}
	e.ledger.Disabled.Clear()

	removed := make(map[string]bool)
	remove := func(name string) {
		if removed[name] {
			return
		}
		removed[name] = true
		err := e.store.RemoveRule(name)
		switch {
		case err == nil:
			res.Deleted = append(res.Deleted, name)
		case store.IsNotFound(err):
			e.log.Debugf("Created rule %q no longer exists", name)
		default:
			e.log.Warnf("Failed to delete rule %q: %v", name, err)
			res.fail(OpRemove, name, err)
		}
	}

	for _, name := range e.ledger.Created.Names() {
		remove(name)
	}

	entries, err := e.store.ListRules()
	if err != nil {
		e.log.Warnf("Failed to list filter rules for the leftover sweep: %v", err)
		res.fail(OpList, "", err)
	}
	for _, entry := range entries {
		if e.namer.Owns(entry.Name) {
			remove(entry.Name)
		}
	}
	e.ledger.Created.Clear()

	e.logResult("Reset", res)
	return res
}

// Recover rebuilds the ledger from the filter store after a restart: rules
// carrying the name prefix count as created, and rules the store reports as
// parked count as disabled.
func (e *Engine) Recover() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.store.ListRules()
	if err != nil {
		return errors.NewStoreError("failed to list filter rules", err)
	}
	for _, entry := range entries {
		if e.namer.Owns(entry.Name) {
			e.ledger.Created.Add(entry.Name)
		}
	}

	if lister, ok := e.store.(store.ParkedLister); ok {
		parked, err := lister.ParkedRules()
		if err != nil {
			return errors.NewStoreError("failed to list parked rules", err)
		}
		for _, name := range parked {
			if !e.namer.Owns(name) {
				e.ledger.Disabled.Add(name)
			}
		}
	}

	e.metrics.observeLedger(e.ledger)
	if e.ledger.Created.Len()+e.ledger.Disabled.Len() > 0 {
		e.log.Infof("Recovered %d created and %d disabled rule(s) from the filter store",
			e.ledger.Created.Len(), e.ledger.Disabled.Len())
	}
	return nil
}

func (e *Engine) logResult(pass string, res *Result) {
	if !res.Changed() && len(res.Failures) == 0 {
		e.log.Debugf("%s: no changes", pass)
		return
	}
	summary := fmt.Sprintf("%s: %d created, %d deleted, %d disabled, %d enabled",
		pass, len(res.Created), len(res.Deleted), len(res.Disabled), len(res.Enabled))
	if len(res.Failures) > 0 {
		e.log.Warnf("%s, %d failed", summary, len(res.Failures))
		return
	}
	e.log.Infof("%s", summary)
}
