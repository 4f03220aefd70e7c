package utils

import (
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	configDir := filepath.FromSlash("/opt/etc/keen-iprules")

	tests := []struct {
		name     string
		path     string
		dir      string
		expected string
	}{
		{name: "unset", path: "", dir: configDir, expected: ""},
		{name: "absolute", path: filepath.FromSlash("/etc/iprules.conf"), dir: configDir, expected: filepath.FromSlash("/etc/iprules.conf")},
		{name: "next to config", path: "iprules.conf", dir: configDir, expected: filepath.FromSlash("/opt/etc/keen-iprules/iprules.conf")},
		{name: "dot segments", path: "./lists/../iprules.conf", dir: configDir, expected: filepath.FromSlash("/opt/etc/keen-iprules/iprules.conf")},
		{name: "parent dir", path: "../iprules.conf", dir: configDir, expected: filepath.FromSlash("/opt/etc/iprules.conf")},
		{name: "config dir unknown", path: "iprules.conf", dir: "", expected: "iprules.conf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePath(tt.path, tt.dir); got != tt.expected {
				t.Errorf("ResolvePath(%q, %q) = %q, want %q", tt.path, tt.dir, got, tt.expected)
			}
		})
	}
}
