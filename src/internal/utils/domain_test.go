package utils

import "testing"

func TestIsHostname(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "example.com", want: true},
		{input: "example.com.", want: true},
		{input: "localhost", want: true},
		{input: "sub.domain.example.org", want: true},
		{input: "8.8.8.8", want: false},
		{input: "::1", want: false},
		{input: "", want: false},
		{input: "bad..name", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsHostname(tt.input); got != tt.want {
				t.Errorf("IsHostname(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeHostname(t *testing.T) {
	if got := NormalizeHostname(" Example.COM. "); got != "example.com" {
		t.Errorf("NormalizeHostname() = %q, want %q", got, "example.com")
	}
}
