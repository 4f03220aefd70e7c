package engine

import (
	stderrors "errors"
	"fmt"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
)

// Operation names a filter store call made during a pass.
type Operation string

const (
	OpList    Operation = "list"
	OpAdd     Operation = "add"
	OpRemove  Operation = "remove"
	OpDisable Operation = "disable"
	OpEnable  Operation = "enable"
)

// Failure is one filter store call that failed during a pass.
type Failure struct {
	Op      Operation `json:"op"`
	Name    string    `json:"name,omitempty"`
	Message string    `json:"error"`
	Err     error     `json:"-"`
}

func (f Failure) Error() string {
	if f.Name == "" {
		return fmt.Sprintf("%s: %v", f.Op, f.Err)
	}
	return fmt.Sprintf("%s %q: %v", f.Op, f.Name, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result describes what a pass changed.
type Result struct {
	Created  []string  `json:"created"`
	Deleted  []string  `json:"deleted"`
	Disabled []string  `json:"disabled"`
	Enabled  []string  `json:"enabled"`
	Failures []Failure `json:"failures,omitempty"`
}

func (r *Result) fail(op Operation, name string, err error) {
	r.Failures = append(r.Failures, Failure{Op: op, Name: name, Message: err.Error(), Err: err})
}

// Changed reports whether the pass touched the filter store.
func (r *Result) Changed() bool {
	return len(r.Created)+len(r.Deleted)+len(r.Disabled)+len(r.Enabled) > 0
}

// Err joins all failures into a single StoreError, or returns nil.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.NewStoreError(fmt.Sprintf("%d filter store operation(s) failed", len(r.Failures)), stderrors.Join(errs...))
}
