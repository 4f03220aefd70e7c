package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

const hashCacheTTL = 5 * time.Minute

// ConfigHasher calculates MD5 hash of configuration state.
// It keeps a cached hash of the file on disk and the hash of the
// configuration the service is currently running with.
type ConfigHasher struct {
	configPath string

	// Current hash (from config file) with caching
	currentHash     string
	currentHashTime time.Time
	ttl             time.Duration

	// Active hash (from running service)
	activeHash string

	mu sync.RWMutex
}

// NewConfigHasher creates a new config hasher
func NewConfigHasher(configPath string) *ConfigHasher {
	return &ConfigHasher{
		configPath: configPath,
		ttl:        hashCacheTTL,
	}
}

// SetCacheTTL changes how long GetCurrentConfigHash reuses a computed hash.
func (h *ConfigHasher) SetCacheTTL(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ttl = ttl
}

// GetCurrentConfigHash returns cached hash of current config file
// Automatically calls UpdateCurrentConfigHash() on cache miss
func (h *ConfigHasher) GetCurrentConfigHash() (string, error) {
	h.mu.RLock()
	if time.Since(h.currentHashTime) < h.ttl && h.currentHash != "" {
		hash := h.currentHash
		h.mu.RUnlock()
		return hash, nil
	}
	h.mu.RUnlock()

	return h.UpdateCurrentConfigHash()
}

// UpdateCurrentConfigHash recalculates config hash and resets cache
func (h *ConfigHasher) UpdateCurrentConfigHash() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := LoadConfig(h.configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	hash, err := h.calculateHashForConfig(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to calculate hash: %w", err)
	}

	h.currentHash = hash
	h.currentHashTime = time.Now()

	return hash, nil
}

// CalculateHash calculates hash for a given config object
func (h *ConfigHasher) CalculateHash(config *Config) (string, error) {
	return h.calculateHashForConfig(config)
}

// GetActiveConfigHash returns hash of config the service is running with
func (h *ConfigHasher) GetActiveConfigHash() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.activeHash
}

// SetActiveConfigHash sets the hash of config the service is running with
func (h *ConfigHasher) SetActiveConfigHash(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeHash = hash
}

// calculateHashForConfig generates MD5 hash of the parts of the configuration
// that affect reconciliation. The API section is left out.
func (h *ConfigHasher) calculateHashForConfig(config *Config) (string, error) {
	hashData := &ConfigHashData{
		General:      config.General,
		IPTables:     config.IPTables,
		NFTables:     config.NFTables,
		SettingsFile: hashSettingsFile(config),
	}
	if config.Hostnames != nil {
		// Reordering hosts is not a change.
		hostnames := *config.Hostnames
		hostnames.Hosts = sortedStrings(hostnames.Hosts)
		hashData.Hostnames = &hostnames
	}

	jsonBytes, err := json.Marshal(hashData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config data: %w", err)
	}

	hash := md5.Sum(jsonBytes)
	return hex.EncodeToString(hash[:]), nil
}

// hashSettingsFile returns the MD5 of general.settings_file so that edits to
// that file count as a configuration change.
func hashSettingsFile(config *Config) string {
	path := config.SettingsFilePath()
	if path == "" {
		return ""
	}
	content, err := utils.ReadFileLimited(path, MaxSettingsFileSize)
	if err != nil {
		return fmt.Sprintf("error:%v", err)
	}
	hash := md5.Sum(content)
	return hex.EncodeToString(hash[:])
}

// ConfigHashData represents the structure used for hashing
type ConfigHashData struct {
	General      *GeneralConfig   `json:"general"`
	Hostnames    *HostnamesConfig `json:"hostnames"`
	IPTables     *IPTablesConfig  `json:"iptables"`
	NFTables     *NFTablesConfig  `json:"nftables"`
	SettingsFile string           `json:"settings_file_md5"`
}

// sortedStrings returns a sorted copy of a string slice
func sortedStrings(s []string) []string {
	result := make([]string, len(s))
	copy(result, s)
	sort.Strings(result)
	return result
}
