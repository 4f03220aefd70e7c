package rules

import (
	"fmt"
	"strings"

	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

// Action is what the filter does with matching traffic.
type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionBlock Action = "BLOCK"
)

const (
	// AnyPort matches every local port.
	AnyPort = "any"
	// AnyAddress matches every remote address.
	AnyAddress = "0.0.0.0"

	anyRendering = "(any)"
)

// ParseAction maps an action token to an Action, case-insensitively.
// ok is false for unrecognized tokens, in which case ActionAllow is returned.
func ParseAction(token string) (action Action, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case string(ActionAllow):
		return ActionAllow, true
	case string(ActionBlock):
		return ActionBlock, true
	default:
		return ActionAllow, false
	}
}

// Rule is one desired access rule.
type Rule struct {
	Action        Action `json:"action"`
	Port          string `json:"port"`
	RemoteAddress string `json:"remote_address"`
	NameSuffix    string `json:"name_suffix,omitempty"`
}

// IsAnyPort reports whether the rule applies to every local port.
func (r Rule) IsAnyPort() bool {
	return r.Port == AnyPort
}

// IsAnyAddress reports whether the rule applies to every remote address.
func (r Rule) IsAnyAddress() bool {
	return r.RemoteAddress == AnyAddress
}

// CanonicalName returns the rule name rendered with the default naming prefix.
func (r Rule) CanonicalName() string {
	return DefaultNamer.Name(r)
}

// String implements fmt.Stringer.
func (r Rule) String() string {
	s := fmt.Sprintf("%s %s %s", r.Action, r.Port, r.RemoteAddress)
	if r.NameSuffix != "" {
		s += " (" + r.NameSuffix + ")"
	}
	return s
}

// Validate checks that port and address hold values a filter store can express.
func (r Rule) Validate() error {
	if r.Action != ActionAllow && r.Action != ActionBlock {
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if !r.IsAnyPort() {
		if _, _, err := utils.ParsePortRange(r.Port); err != nil {
			return err
		}
	}
	if !r.IsAnyAddress() {
		if _, err := utils.ParseAddress(r.RemoteAddress); err != nil {
			return err
		}
	}
	return nil
}

// normalizePort maps the port sentinels ("any", "*", legacy "0") to AnyPort.
func normalizePort(token string) string {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "any", "*", "0":
		return AnyPort
	default:
		return strings.TrimSpace(token)
	}
}

// normalizeAddress maps the address sentinels ("any", "*", "0.0.0.0") to AnyAddress
// and canonicalizes CIDR prefixes.
func normalizeAddress(token string) string {
	token = strings.TrimSpace(token)
	switch strings.ToLower(token) {
	case "any", "*", AnyAddress:
		return AnyAddress
	}
	if addr, err := utils.ParseAddress(token); err == nil {
		return addr.String()
	}
	return token
}
