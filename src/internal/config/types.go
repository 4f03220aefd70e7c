package config

import (
	"path/filepath"

	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

const (
	BackendIPTables = "iptables"
	BackendNFTables = "nftables"
	BackendMemory   = "memory"
)

const (
	DefaultGrammar                    = string(rules.GrammarExplicit)
	DefaultBackend                    = BackendIPTables
	DefaultStoreTimeoutSeconds        = 10
	DefaultConfigCheckIntervalSeconds = 30
	DefaultHostnamePort               = "80"
	DefaultRefreshIntervalMinutes     = 5
	DefaultAPIListen                  = "0.0.0.0:12121"

	// MaxSettingsFileSize bounds general.settings_file.
	MaxSettingsFileSize = 1 << 20
)

type Config struct {
	General   *GeneralConfig   `toml:"general" json:"general"`
	Hostnames *HostnamesConfig `toml:"hostnames" json:"hostnames"`
	IPTables  *IPTablesConfig  `toml:"iptables" json:"iptables"`
	NFTables  *NFTablesConfig  `toml:"nftables" json:"nftables"`
	API       *APIConfig       `toml:"api" json:"api"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	// Enabled is kept as a string. Whether it means "on" depends on the grammar.
	Enabled                    string `toml:"enabled" json:"enabled"`
	Settings                   string `toml:"settings" json:"settings"`
	// SettingsFile is read when Settings is empty. Relative paths are resolved against the config directory.
	SettingsFile               string `toml:"settings_file" json:"settings_file"`
	Grammar                    string `toml:"grammar" json:"grammar" validate:"omitempty,oneof=explicit legacy"`
	StrictActions              bool   `toml:"strict_actions" json:"strict_actions"`
	Backend                    string `toml:"backend" json:"backend" validate:"omitempty,oneof=iptables nftables memory"`
	StoreTimeoutSeconds        int    `toml:"store_timeout_seconds" json:"store_timeout_seconds" validate:"min=0,max=600"`
	ConfigCheckIntervalSeconds int    `toml:"config_check_interval_seconds" json:"config_check_interval_seconds" validate:"min=0,max=86400"`
}

type HostnamesConfig struct {
	Hosts                  []string `toml:"hosts" json:"hosts" validate:"dive,dns_name"`
	Port                   string   `toml:"port" json:"port" validate:"omitempty,port_or_any"`
	RefreshIntervalMinutes int      `toml:"refresh_interval_minutes" json:"refresh_interval_minutes" validate:"min=0,max=1440"`
	DNSServers             []string `toml:"dns_servers" json:"dns_servers" validate:"dive,dns_server"`
	IPv6                   bool     `toml:"ipv6" json:"ipv6"`
}

type IPTablesConfig struct {
	Table        string `toml:"table" json:"table" validate:"omitempty,oneof=filter raw mangle"`
	Chain        string `toml:"chain" json:"chain" validate:"omitempty,chain_name"`
	ParkingChain string `toml:"parking_chain" json:"parking_chain" validate:"omitempty,chain_name"`
	IPv6         bool   `toml:"ipv6" json:"ipv6"`
}

type NFTablesConfig struct {
	Family       string `toml:"family" json:"family" validate:"omitempty,oneof=inet ip ip6"`
	Table        string `toml:"table" json:"table" validate:"omitempty,chain_name"`
	Chain        string `toml:"chain" json:"chain" validate:"omitempty,chain_name"`
	ParkingChain string `toml:"parking_chain" json:"parking_chain" validate:"omitempty,chain_name"`
}

type APIConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Listen  string `toml:"listen" json:"listen" validate:"hostport_or_empty"`
}

// Path returns the absolute path the configuration was loaded from.
func (c *Config) Path() string {
	return c._absConfigFilePath
}

// Dir returns the directory of the configuration file.
func (c *Config) Dir() string {
	if c._absConfigFilePath == "" {
		return ""
	}
	return filepath.Dir(c._absConfigFilePath)
}

// SettingsFilePath returns the absolute path of general.settings_file, or "" when unset.
func (c *Config) SettingsFilePath() string {
	if c.General == nil {
		return ""
	}
	return utils.ResolvePath(c.General.SettingsFile, c.Dir())
}

// Grammar returns the configured settings grammar.
func (c *Config) Grammar() rules.Grammar {
	if c.General == nil || c.General.Grammar == "" {
		return rules.GrammarExplicit
	}
	return rules.Grammar(c.General.Grammar)
}
