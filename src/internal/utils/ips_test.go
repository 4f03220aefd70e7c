package utils

import (
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     AddressKind
		expected string
		is4      bool
		wantErr  bool
	}{
		{name: "single IPv4", input: "8.8.8.8", kind: AddressSingle, expected: "8.8.8.8", is4: true},
		{name: "single IPv6", input: "2001:db8::1", kind: AddressSingle, expected: "2001:db8::1"},
		{name: "CIDR is masked", input: "10.1.2.3/8", kind: AddressPrefix, expected: "10.0.0.0/8", is4: true},
		{name: "range", input: "8.8.8.8-9.9.9.9", kind: AddressRange, expected: "8.8.8.8-9.9.9.9", is4: true},
		{name: "range with spaces", input: " 1.1.1.1 - 1.1.1.9 ", kind: AddressRange, expected: "1.1.1.1-1.1.1.9", is4: true},
		{name: "reversed range", input: "9.9.9.9-8.8.8.8", wantErr: true},
		{name: "mixed range", input: "1.1.1.1-::1", wantErr: true},
		{name: "hostname", input: "example.com", wantErr: true},
		{name: "bad CIDR", input: "10.0.0.0/33", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %v", tt.input, addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if addr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", addr.Kind, tt.kind)
			}
			if addr.String() != tt.expected {
				t.Errorf("String() = %q, want %q", addr.String(), tt.expected)
			}
			if addr.Is4() != tt.is4 {
				t.Errorf("Is4() = %v, want %v", addr.Is4(), tt.is4)
			}
		})
	}
}

func TestParsePortRange(t *testing.T) {
	tests := []struct {
		input   string
		from    uint16
		to      uint16
		wantErr bool
	}{
		{input: "80", from: 80, to: 80},
		{input: "8000-8080", from: 8000, to: 8080},
		{input: "65535", from: 65535, to: 65535},
		{input: "0", wantErr: true},
		{input: "65536", wantErr: true},
		{input: "http", wantErr: true},
		{input: "90-80", wantErr: true},
		{input: "80-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			from, to, err := ParsePortRange(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if from != tt.from || to != tt.to {
				t.Errorf("ParsePortRange(%q) = %d-%d, want %d-%d", tt.input, from, to, tt.from, tt.to)
			}
		})
	}
}

func TestIsValidPort(t *testing.T) {
	if !IsValidPort("443") {
		t.Errorf("Expected 443 to be a valid port")
	}
	if IsValidPort("443-444") {
		t.Errorf("Expected range to be rejected by IsValidPort")
	}
}
