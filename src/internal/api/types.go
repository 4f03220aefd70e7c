package api

import (
	"github.com/maksimkurb/keen-iprules/src/internal/engine"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/service"
	"github.com/maksimkurb/keen-iprules/src/internal/store"
)

// DataResponse wraps successful responses with a "data" field.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// StatusResponse returns service status and build information.
type StatusResponse struct {
	Version VersionInfo    `json:"version"`
	Service service.Status `json:"service"`
}

// VersionInfo contains build version information.
type VersionInfo struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	Commit  string `json:"commit"`
}

// RuleInfo is a filter store entry as reported by the API.
type RuleInfo struct {
	store.Entry
	// Owned is true for entries carrying the naming prefix.
	Owned bool `json:"owned"`
}

// RulesResponse returns every entry of the filter store.
type RulesResponse struct {
	Rules []RuleInfo `json:"rules"`
}

// Service actions accepted by POST /api/v1/service.
const (
	ActionApply  = "apply"
	ActionReset  = "reset"
	ActionReload = "reload"
)

// ServiceControlRequest asks the service to run a pass.
type ServiceControlRequest struct {
	Action string `json:"action"`
}

// ServiceControlResponse returns the result of a service control operation.
type ServiceControlResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Result  *engine.Result `json:"result,omitempty"`
}

// CheckSettingsRequest contains a settings string to dry-run parse.
type CheckSettingsRequest struct {
	Settings      string `json:"settings"`
	Grammar       string `json:"grammar,omitempty"`
	StrictActions *bool  `json:"strict_actions,omitempty"`
}

// ParsedRule is a parsed rule together with the name it would get.
type ParsedRule struct {
	rules.Rule
	Name string `json:"name"`
}

// CheckSettingsResponse lists the rules a settings string would produce.
type CheckSettingsResponse struct {
	Grammar string       `json:"grammar"`
	Rules   []ParsedRule `json:"rules"`
}

// HealthCheckResponse returns health check results.
type HealthCheckResponse struct {
	Healthy bool                   `json:"healthy"`
	Checks  map[string]CheckResult `json:"checks"`
}

// CheckResult contains the result of a single health check.
type CheckResult struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}
