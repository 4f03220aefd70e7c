// Package rules describes desired access rules and turns rule definitions into them.
//
// A Rule is an immutable value: action, local port, remote address and an
// optional name suffix. Its canonical name is the only identity used when
// matching against the filter store, so two rules are the same rule exactly
// when their canonical names are equal.
//
// Two definition grammars are supported, one per parser:
//
//	explicit: "ALLOW 80 8.8.8.8,9.9.9.9;BLOCK 81 1.1.1.1"
//	legacy:   "80=8.8.8.8,9.9.9.9;81=1.1.1.1"  (always ALLOW)
package rules
