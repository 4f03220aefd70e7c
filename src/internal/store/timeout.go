package store

import (
	"fmt"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

// WithTimeout bounds every call to s by d. A call that does not return in
// time fails with a StoreError; its goroutine is abandoned.
// A non-positive d returns s unchanged.
func WithTimeout(s FilterStore, d time.Duration) FilterStore {
	if d <= 0 {
		return s
	}
	return &timeoutStore{inner: s, timeout: d}
}

type timeoutStore struct {
	inner   FilterStore
	timeout time.Duration
}

type listResult struct {
	entries []Entry
	names   []string
	err     error
}

func (t *timeoutStore) call(op string, fn func() listResult) listResult {
	done := make(chan listResult, 1)
	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res
	case <-timer.C:
		return listResult{err: errors.NewStoreError(fmt.Sprintf("%s timed out after %s", op, t.timeout), nil)}
	}
}

func (t *timeoutStore) ListRules() ([]Entry, error) {
	res := t.call("list rules", func() listResult {
		entries, err := t.inner.ListRules()
		return listResult{entries: entries, err: err}
	})
	return res.entries, res.err
}

func (t *timeoutStore) AddRule(name string, action rules.Action, port, remoteAddress string) error {
	return t.call(fmt.Sprintf("add rule %q", name), func() listResult {
		return listResult{err: t.inner.AddRule(name, action, port, remoteAddress)}
	}).err
}

func (t *timeoutStore) RemoveRule(name string) error {
	return t.call(fmt.Sprintf("remove rule %q", name), func() listResult {
		return listResult{err: t.inner.RemoveRule(name)}
	}).err
}

func (t *timeoutStore) SetEnabled(name string, enabled bool) error {
	return t.call(fmt.Sprintf("set enabled=%t on rule %q", enabled, name), func() listResult {
		return listResult{err: t.inner.SetEnabled(name, enabled)}
	}).err
}

// ParkedRules forwards to the wrapped store; stores without the capability report nothing.
func (t *timeoutStore) ParkedRules() ([]string, error) {
	lister, ok := t.inner.(ParkedLister)
	if !ok {
		return nil, nil
	}
	res := t.call("list parked rules", func() listResult {
		names, err := lister.ParkedRules()
		return listResult{names: names, err: err}
	})
	return res.names, res.err
}
