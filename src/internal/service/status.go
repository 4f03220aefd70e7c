package service

import (
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/engine"
)

// Pass kinds, as reported in Status.LastPass.
const (
	PassStart   = "start"
	PassRefresh = "refresh"
	PassReload  = "reload"
	PassApply   = "apply"
	PassReset   = "reset"
	PassStop    = "stop"
)

// Status is a snapshot of the service state.
type Status struct {
	Running    bool                 `json:"running"`
	Enabled    bool                 `json:"enabled"`
	Suspended  bool                 `json:"suspended"`
	Backend    string               `json:"backend"`
	Hosts      []string             `json:"hosts"`
	LastPass   string               `json:"last_pass,omitempty"`
	LastPassAt *time.Time           `json:"last_pass_at,omitempty"`
	LastResult *engine.Result       `json:"last_result,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
	Passes     int                  `json:"passes"`
	ConfigHash string               `json:"config_hash,omitempty"`
	Ledger     engine.LedgerSnapshot `json:"ledger"`
}
