package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const hasherTestConfig = `[general]
enabled = "true"
settings = "ALLOW 80 8.8.8.8"

[hostnames]
hosts = ["a.example.com", "b.example.com"]
`

func TestConfigHasher_CurrentHash(t *testing.T) {
	configFile := writeConfig(t, hasherTestConfig)
	hasher := NewConfigHasher(configFile)

	hash1, err := hasher.GetCurrentConfigHash()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(hash1) != 32 {
		t.Errorf("Expected MD5 hex digest, got %q", hash1)
	}

	// Cached value is returned until the cache expires or is refreshed.
	if err := os.WriteFile(configFile, []byte(hasherTestConfig+"\n[iptables]\nchain = \"FORWARD\"\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}
	hash2, err := hasher.GetCurrentConfigHash()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hash2 != hash1 {
		t.Error("Expected cached hash before refresh")
	}

	hash3, err := hasher.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hash3 == hash1 {
		t.Error("Expected hash to change after config edit")
	}
}

func TestConfigHasher_CacheTTL(t *testing.T) {
	configFile := writeConfig(t, hasherTestConfig)
	hasher := NewConfigHasher(configFile)
	hasher.SetCacheTTL(0)

	hash1, err := hasher.GetCurrentConfigHash()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := os.WriteFile(configFile, []byte(`[general]
enabled = "false"
settings = "ALLOW 80 8.8.8.8"
`), 0644); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}

	hash2, err := hasher.GetCurrentConfigHash()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hash1 == hash2 {
		t.Error("Expected recalculation with zero TTL")
	}
}

func TestConfigHasher_IgnoresHostOrderAndAPI(t *testing.T) {
	hasher := NewConfigHasher("")

	cfg1, err := ParseConfig([]byte(hasherTestConfig))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cfg2, err := ParseConfig([]byte(`[general]
enabled = "true"
settings = "ALLOW 80 8.8.8.8"

[hostnames]
hosts = ["b.example.com", "a.example.com"]

[api]
enabled = true
listen = "127.0.0.1:1"
`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	hash1, err := hasher.CalculateHash(cfg1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	hash2, err := hasher.CalculateHash(cfg2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hash1 != hash2 {
		t.Error("Expected host order and api section not to affect the hash")
	}
	if cfg2.Hostnames.Hosts[0] != "b.example.com" {
		t.Error("Hashing must not reorder the configured hosts")
	}

	cfg2.General.Settings = "BLOCK 80 8.8.8.8"
	hash3, err := hasher.CalculateHash(cfg2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hash3 == hash1 {
		t.Error("Expected settings change to affect the hash")
	}
}

func TestConfigHasher_SettingsFileContent(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "keen-iprules.toml")
	rulesFile := filepath.Join(dir, "rules.txt")
	if err := os.WriteFile(configFile, []byte("[general]\nsettings_file = \"rules.txt\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := os.WriteFile(rulesFile, []byte("ALLOW 80 8.8.8.8"), 0644); err != nil {
		t.Fatalf("Failed to write rules: %v", err)
	}

	hasher := NewConfigHasher(configFile)
	hash1, err := hasher.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := os.WriteFile(rulesFile, []byte("ALLOW 81 8.8.8.8"), 0644); err != nil {
		t.Fatalf("Failed to write rules: %v", err)
	}
	hash2, err := hasher.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hash1 == hash2 {
		t.Error("Expected settings file edit to change the hash")
	}
}

func TestConfigHasher_ActiveHash(t *testing.T) {
	hasher := NewConfigHasher("")
	if hasher.GetActiveConfigHash() != "" {
		t.Error("Expected empty active hash initially")
	}
	hasher.SetActiveConfigHash("abc")
	if hasher.GetActiveConfigHash() != "abc" {
		t.Errorf("Expected active hash abc, got %s", hasher.GetActiveConfigHash())
	}
}

func TestConfigHasher_MissingFile(t *testing.T) {
	hasher := NewConfigHasher("/non/existent/keen-iprules.toml")
	if _, err := hasher.GetCurrentConfigHash(); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestConfigHasher_ConcurrentAccess(t *testing.T) {
	configFile := writeConfig(t, hasherTestConfig)
	hasher := NewConfigHasher(configFile)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = hasher.GetCurrentConfigHash()
		}()
		go func() {
			defer wg.Done()
			_, _ = hasher.UpdateCurrentConfigHash()
		}()
		go func() {
			defer wg.Done()
			hasher.SetActiveConfigHash(hasher.GetActiveConfigHash())
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Deadlock detected")
	}
}
