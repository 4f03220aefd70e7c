package api

import (
	"net/http"
)

var (
	// Version information set via ldflags at build time
	Version = "dev"
	Date    = "n/a"
	Commit  = "n/a"
)

// GetStatus returns service status information.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONData(w, StatusResponse{
		Version: VersionInfo{Version: Version, Date: Date, Commit: Commit},
		Service: h.ctrl.Status(),
	})
}

// GetLedger returns the names the engine created and disabled.
// GET /api/v1/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	writeJSONData(w, h.ctrl.Status().Ledger)
}

// GetRules lists every entry of the filter store, owned or not.
// GET /api/v1/rules
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ctrl.Rules()
	if err != nil {
		h.log.Errorf("Failed to list filter rules: %v", err)
		WriteServiceError(w, "Failed to list filter rules: "+err.Error(), nil)
		return
	}

	namer := h.ctrl.Namer()
	onlyOwned := r.URL.Query().Get("owned") == "true"

	response := RulesResponse{Rules: make([]RuleInfo, 0, len(entries))}
	for _, e := range entries {
		owned := namer.Owns(e.Name)
		if onlyOwned && !owned {
			continue
		}
		response.Rules = append(response.Rules, RuleInfo{Entry: e, Owned: owned})
	}

	writeJSONData(w, response)
}
