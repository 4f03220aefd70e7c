package rules

import (
	"net/netip"
	"testing"
)

func TestRule_CanonicalName(t *testing.T) {
	tests := []struct {
		name     string
		rule     Rule
		expected string
	}{
		{
			name:     "literal values",
			rule:     Rule{Action: ActionAllow, Port: "80", RemoteAddress: "8.8.8.8"},
			expected: "keen-iprules Action ALLOW IP/Host 8.8.8.8 on Port 80",
		},
		{
			name:     "sentinels render as (any)",
			rule:     Rule{Action: ActionBlock, Port: AnyPort, RemoteAddress: AnyAddress},
			expected: "keen-iprules Action BLOCK IP/Host (any) on Port (any)",
		},
		{
			name:     "name suffix",
			rule:     Rule{Action: ActionAllow, Port: "80", RemoteAddress: "93.184.216.34", NameSuffix: "example.com"},
			expected: "keen-iprules Action ALLOW IP/Host 93.184.216.34 on Port 80 (example.com)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.CanonicalName(); got != tt.expected {
				t.Errorf("CanonicalName() = %q, want %q", got, tt.expected)
			}
			if tt.rule.CanonicalName() != tt.rule.CanonicalName() {
				t.Errorf("CanonicalName() is not stable")
			}
		})
	}
}

func TestRule_SameRule(t *testing.T) {
	a := Rule{Action: ActionAllow, Port: "80", RemoteAddress: "8.8.8.8"}
	b := Rule{Action: ActionAllow, Port: "80", RemoteAddress: "8.8.8.8"}
	c := Rule{Action: ActionBlock, Port: "80", RemoteAddress: "8.8.8.8"}
	d := Rule{Action: ActionAllow, Port: "80", RemoteAddress: "8.8.8.8", NameSuffix: "host"}

	if a.CanonicalName() != b.CanonicalName() {
		t.Errorf("Expected equal rules to share a canonical name")
	}
	if a.CanonicalName() == c.CanonicalName() {
		t.Errorf("Expected different actions to produce different names")
	}
	if a.CanonicalName() == d.CanonicalName() {
		t.Errorf("Expected name suffix to produce a different name")
	}
}

func TestNamer(t *testing.T) {
	namer := NewNamer("test-engine")
	rule := Rule{Action: ActionAllow, Port: "443", RemoteAddress: "1.1.1.1"}
	name := namer.Name(rule)

	if name != "test-engine Action ALLOW IP/Host 1.1.1.1 on Port 443" {
		t.Errorf("Name() = %q", name)
	}
	if !namer.Owns(name) {
		t.Errorf("Expected namer to own its own names")
	}
	if namer.Owns("test-engine-other Action ALLOW IP/Host 1.1.1.1 on Port 443") {
		t.Errorf("Expected prefix match to require a word boundary")
	}
	if namer.Owns("Allow HTTP") {
		t.Errorf("Expected foreign names not to be owned")
	}
	if namer.Prefix() != "test-engine" {
		t.Errorf("Prefix() = %q", namer.Prefix())
	}
}

func TestRule_Validate(t *testing.T) {
	valid := []Rule{
		{Action: ActionAllow, Port: "80", RemoteAddress: "8.8.8.8"},
		{Action: ActionBlock, Port: AnyPort, RemoteAddress: AnyAddress},
		{Action: ActionAllow, Port: "1000-2000", RemoteAddress: "2001:db8::/32"},
	}
	for _, r := range valid {
		if err := r.Validate(); err != nil {
			t.Errorf("Validate(%v) unexpected error: %v", r, err)
		}
	}

	invalid := []Rule{
		{Action: "DENY", Port: "80", RemoteAddress: "8.8.8.8"},
		{Action: ActionAllow, Port: "eighty", RemoteAddress: "8.8.8.8"},
		{Action: ActionAllow, Port: "80", RemoteAddress: "not-an-ip"},
	}
	for _, r := range invalid {
		if err := r.Validate(); err == nil {
			t.Errorf("Validate(%v) expected error", r)
		}
	}
}

func TestHostnameRules(t *testing.T) {
	resolved := []Resolved{
		{Hostname: "a.example.com", Address: netip.MustParseAddr("192.0.2.1")},
		{Hostname: "a.example.com", Address: netip.MustParseAddr("192.0.2.2")},
		{Hostname: "b.example.com", Address: netip.MustParseAddr("192.0.2.1")},
		{Hostname: "a.example.com", Address: netip.MustParseAddr("192.0.2.1")},
	}

	got := HostnameRules("80", resolved)
	if len(got) != 3 {
		t.Fatalf("Expected 3 rules, got %d: %v", len(got), got)
	}
	for _, r := range got {
		if r.Action != ActionAllow || r.Port != "80" || r.NameSuffix == "" {
			t.Errorf("Unexpected hostname rule %v", r)
		}
	}
	if got[2].NameSuffix != "b.example.com" || got[2].RemoteAddress != "192.0.2.1" {
		t.Errorf("Unexpected third rule %v", got[2])
	}
}
