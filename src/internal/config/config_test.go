package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	kerrors "github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "keen-iprules.toml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return configFile
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	_, err := LoadConfig("/non/existent/file.toml")
	if err == nil {
		t.Fatal("Expected error for non-existent file")
	}
	if !errors.Is(err, kerrors.ErrConfig) {
		t.Errorf("Expected a config error, got %v", err)
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	configFile := writeConfig(t, `[general
	settings = "ALLOW 80 8.8.8.8"`)

	_, err := LoadConfig(configFile)
	if err == nil {
		t.Fatal("Expected error for invalid TOML")
	}
	if !errors.Is(err, kerrors.ErrConfig) {
		t.Errorf("Expected a config error, got %v", err)
	}
	if !strings.Contains(err.Error(), "line ") {
		t.Errorf("Expected error position in %q", err.Error())
	}
}

func TestLoadConfig_ValidConfig(t *testing.T) {
	configFile := writeConfig(t, `[general]
enabled = "TRUE"
settings = "ALLOW 80 8.8.8.8,9.9.9.9;BLOCK 81 1.1.1.1"
grammar = "explicit"
strict_actions = true
backend = "nftables"
store_timeout_seconds = 3

[hostnames]
hosts = ["example.com", "api.example.com"]
port = "443"
dns_servers = ["1.1.1.1:53"]

[nftables]
family = "ip"

[api]
enabled = true
listen = "127.0.0.1:9000"
`)

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.General.Enabled != "TRUE" {
		t.Errorf("Expected enabled TRUE, got %q", cfg.General.Enabled)
	}
	if cfg.General.Backend != BackendNFTables {
		t.Errorf("Expected backend nftables, got %q", cfg.General.Backend)
	}
	if cfg.General.StoreTimeoutSeconds != 3 {
		t.Errorf("Expected store timeout 3, got %d", cfg.General.StoreTimeoutSeconds)
	}
	if !cfg.General.StrictActions {
		t.Error("Expected strict_actions to be true")
	}
	if len(cfg.Hostnames.Hosts) != 2 || cfg.Hostnames.Port != "443" {
		t.Errorf("Unexpected hostnames section: %+v", cfg.Hostnames)
	}
	if cfg.NFTables.Family != "ip" {
		t.Errorf("Expected nftables family ip, got %q", cfg.NFTables.Family)
	}
	if !cfg.API.Enabled || cfg.API.Listen != "127.0.0.1:9000" {
		t.Errorf("Unexpected api section: %+v", cfg.API)
	}
	if cfg.Path() != configFile {
		t.Errorf("Expected path %s, got %s", configFile, cfg.Path())
	}
	if err := cfg.ValidateConfig(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	configFile := writeConfig(t, `[general]
settings = "ALLOW 80 8.8.8.8"
`)

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.General.Enabled != "" {
		t.Errorf("Expected enabled to stay empty, got %q", cfg.General.Enabled)
	}
	if cfg.General.Grammar != DefaultGrammar {
		t.Errorf("Expected grammar %s, got %s", DefaultGrammar, cfg.General.Grammar)
	}
	if cfg.General.Backend != DefaultBackend {
		t.Errorf("Expected backend %s, got %s", DefaultBackend, cfg.General.Backend)
	}
	if cfg.General.StoreTimeoutSeconds != DefaultStoreTimeoutSeconds {
		t.Errorf("Expected store timeout %d, got %d", DefaultStoreTimeoutSeconds, cfg.General.StoreTimeoutSeconds)
	}
	if cfg.General.ConfigCheckIntervalSeconds != DefaultConfigCheckIntervalSeconds {
		t.Errorf("Expected check interval %d, got %d", DefaultConfigCheckIntervalSeconds, cfg.General.ConfigCheckIntervalSeconds)
	}
	if cfg.Hostnames == nil || cfg.Hostnames.Port != DefaultHostnamePort {
		t.Errorf("Expected hostnames defaults, got %+v", cfg.Hostnames)
	}
	if cfg.Hostnames.RefreshIntervalMinutes != DefaultRefreshIntervalMinutes {
		t.Errorf("Expected refresh interval %d, got %d", DefaultRefreshIntervalMinutes, cfg.Hostnames.RefreshIntervalMinutes)
	}
	if cfg.IPTables == nil || cfg.NFTables == nil {
		t.Error("Expected backend sections to be allocated")
	}
	if cfg.API == nil || cfg.API.Enabled || cfg.API.Listen != DefaultAPIListen {
		t.Errorf("Expected api defaults, got %+v", cfg.API)
	}
	if cfg.Grammar() != rules.GrammarExplicit {
		t.Errorf("Expected explicit grammar, got %s", cfg.Grammar())
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	configFile := writeConfig(t, "")

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.General == nil {
		t.Fatal("Expected general section to be allocated")
	}
	if err := cfg.ValidateConfig(); err != nil {
		t.Errorf("Expected empty config to be valid, got %v", err)
	}
}

func TestSettingsFilePath(t *testing.T) {
	configFile := writeConfig(t, `[general]
settings_file = "rules.txt"
`)

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := filepath.Join(filepath.Dir(configFile), "rules.txt")
	if cfg.SettingsFilePath() != expected {
		t.Errorf("Expected %s, got %s", expected, cfg.SettingsFilePath())
	}

	cfg.General.SettingsFile = "/etc/rules.txt"
	if cfg.SettingsFilePath() != "/etc/rules.txt" {
		t.Errorf("Expected absolute path to be kept, got %s", cfg.SettingsFilePath())
	}
}

func TestSerializeConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`[general]
enabled = "true"
settings = "ALLOW 80 8.8.8.8"
`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	buf, err := cfg.SerializeConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"[general]", "ALLOW 80 8.8.8.8", "iptables", "[hostnames]", "[api]"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in serialized config:\n%s", want, out)
		}
	}
}
