// Package engine reconciles desired access rules against a filter store.
//
// The engine keeps an ownership ledger of the rule names it created and the
// foreign rule names it disabled. Apply brings the store in line with the
// desired rules; Reset undoes everything the ledger records and sweeps any
// leftover rule carrying the engine's name prefix.
package engine
