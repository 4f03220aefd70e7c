package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		General: &GeneralConfig{
			Enabled:  "true",
			Settings: "ALLOW 80 8.8.8.8,9.9.9.9;BLOCK 81 1.1.1.1",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func fieldPaths(err error) []string {
	var ve ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	paths := make([]string, 0, len(ve))
	for _, e := range ve {
		paths = append(paths, e.FieldPath)
	}
	return paths
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError string // field path expected in the errors, "" for valid
	}{
		{
			name:   "valid",
			modify: func(c *Config) {},
		},
		{
			name:      "missing general section",
			modify:    func(c *Config) { c.General = nil },
			wantError: "general",
		},
		{
			name:      "unknown grammar",
			modify:    func(c *Config) { c.General.Grammar = "yaml" },
			wantError: "general.grammar",
		},
		{
			name:      "unknown backend",
			modify:    func(c *Config) { c.General.Backend = "pf" },
			wantError: "general.backend",
		},
		{
			name:      "negative store timeout",
			modify:    func(c *Config) { c.General.StoreTimeoutSeconds = -1 },
			wantError: "general.store_timeout_seconds",
		},
		{
			name:      "malformed settings",
			modify:    func(c *Config) { c.General.Settings = "ALLOW 80" },
			wantError: "general.settings",
		},
		{
			name: "settings in legacy grammar",
			modify: func(c *Config) {
				c.General.Grammar = "legacy"
				c.General.Settings = "80=8.8.8.8;443=1.1.1.1"
			},
		},
		{
			name: "explicit settings under legacy grammar",
			modify: func(c *Config) {
				c.General.Grammar = "legacy"
			},
			wantError: "general.settings",
		},
		{
			name:      "unknown action in strict mode",
			modify:    func(c *Config) { c.General.StrictActions = true; c.General.Settings = "PERMIT 80 8.8.8.8" },
			wantError: "general.settings",
		},
		{
			name:   "unknown action in lenient mode",
			modify: func(c *Config) { c.General.Settings = "PERMIT 80 8.8.8.8" },
		},
		{
			name:      "settings and settings_file together",
			modify:    func(c *Config) { c.General.SettingsFile = "rules.txt" },
			wantError: "general.settings_file",
		},
		{
			name:      "ip literal as host name",
			modify:    func(c *Config) { c.Hostnames.Hosts = []string{"8.8.8.8"} },
			wantError: "hostnames.hosts[0]",
		},
		{
			name:      "duplicate host name",
			modify:    func(c *Config) { c.Hostnames.Hosts = []string{"example.com", "Example.com."} },
			wantError: "hostnames.hosts",
		},
		{
			name:      "invalid hostname port",
			modify:    func(c *Config) { c.Hostnames.Port = "http" },
			wantError: "hostnames.port",
		},
		{
			name:   "hostname port any",
			modify: func(c *Config) { c.Hostnames.Port = "any" },
		},
		{
			name:   "hostname port range",
			modify: func(c *Config) { c.Hostnames.Port = "8000-8080" },
		},
		{
			name:      "invalid dns server",
			modify:    func(c *Config) { c.Hostnames.DNSServers = []string{"dns.google"} },
			wantError: "hostnames.dns_servers[0]",
		},
		{
			name:   "dns servers with and without port",
			modify: func(c *Config) { c.Hostnames.DNSServers = []string{"1.1.1.1", "[2606:4700::1111]:53"} },
		},
		{
			name:      "invalid iptables table",
			modify:    func(c *Config) { c.IPTables.Table = "nat" },
			wantError: "iptables.table",
		},
		{
			name:      "invalid parking chain",
			modify:    func(c *Config) { c.IPTables.ParkingChain = "1BAD CHAIN" },
			wantError: "iptables.parking_chain",
		},
		{
			name:      "invalid nftables family",
			modify:    func(c *Config) { c.NFTables.Family = "bridge" },
			wantError: "nftables.family",
		},
		{
			name:      "invalid api listen address",
			modify:    func(c *Config) { c.API.Listen = "localhost" },
			wantError: "api.listen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.ValidateConfig()
			if tt.wantError == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error on %s, got nil", tt.wantError)
			}

			found := false
			for _, path := range fieldPaths(err) {
				if path == tt.wantError {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error on %s, got %v", tt.wantError, fieldPaths(err))
			}
		})
	}
}

func TestValidateConfig_SettingsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.General.Settings = ""
	cfg._absConfigFilePath = filepath.Join(dir, "keen-iprules.toml")
	cfg.General.SettingsFile = "rules.txt"

	err := cfg.ValidateConfig()
	if err == nil || !strings.Contains(err.Error(), "cannot read settings file") {
		t.Fatalf("Expected unreadable settings file error, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "rules.txt"), []byte("ALLOW 80 8.8.8.8\n"), 0644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}
	if err := cfg.ValidateConfig(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "rules.txt"), []byte("ALLOW 80 not-an-ip\n"), 0644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}
	if err := cfg.ValidateConfig(); err == nil {
		t.Error("Expected parse error from settings file")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	ve := ValidationErrors{
		{FieldPath: "general.grammar", Message: "must be one of: explicit legacy"},
		{ItemName: "example.com", FieldPath: "hostnames.hosts", Message: "duplicate host name: example.com"},
	}

	msg := ve.Error()
	if !strings.Contains(msg, "2 error(s)") {
		t.Errorf("Expected error count in %q", msg)
	}
	if !strings.Contains(msg, "[example.com] hostnames.hosts") {
		t.Errorf("Expected item name in %q", msg)
	}
	if (ValidationErrors{}).Error() != "no validation errors" {
		t.Error("Expected empty message for no errors")
	}
}
