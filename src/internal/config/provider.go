package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	kerrors "github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

// Keys understood by providers.
const (
	KeyEnabled            = "IPAddressRules.Enabled"
	KeySettings           = "IPAddressRules.Settings"
	KeyDNSRefreshInterval = "IPAddressRules.DnsRefreshInterval"
)

// Environment variables read by EnvProvider.
const (
	EnvEnabled            = "KEEN_IPRULES_ENABLED"
	EnvSettings           = "KEEN_IPRULES_SETTINGS"
	EnvDNSRefreshInterval = "KEEN_IPRULES_DNS_REFRESH_INTERVAL"
)

// ErrValueNotSet is wrapped by the ConfigError a provider returns for a missing key.
var ErrValueNotSet = errors.New("value not set")

// Provider exposes configuration values by key.
type Provider interface {
	// Get returns the value for key, or a ConfigError wrapping ErrValueNotSet
	// when the value is missing.
	Get(key string) (string, error)
}

func notSet(key string) error {
	return kerrors.NewConfigError(fmt.Sprintf("configuration value %s", key), ErrValueNotSet)
}

// IsNotSet reports whether err means the key has no value.
func IsNotSet(err error) bool {
	return errors.Is(err, ErrValueNotSet)
}

// FileProvider serves values from a loaded configuration file.
type FileProvider struct {
	cfg *Config
}

func NewFileProvider(cfg *Config) *FileProvider {
	return &FileProvider{cfg: cfg}
}

func (p *FileProvider) Get(key string) (string, error) {
	if p.cfg == nil || p.cfg.General == nil {
		return "", notSet(key)
	}

	var value string
	switch key {
	case KeyEnabled:
		value = p.cfg.General.Enabled
	case KeySettings:
		if path := p.cfg.SettingsFilePath(); path != "" {
			content, err := utils.ReadFileLimited(path, MaxSettingsFileSize)
			if err != nil {
				return "", kerrors.NewConfigError(fmt.Sprintf("failed to read settings file %s", path), err)
			}
			value = strings.TrimSpace(string(content))
		} else {
			value = p.cfg.General.Settings
		}
	case KeyDNSRefreshInterval:
		if p.cfg.Hostnames != nil && p.cfg.Hostnames.RefreshIntervalMinutes > 0 {
			value = strconv.Itoa(p.cfg.Hostnames.RefreshIntervalMinutes)
		}
	default:
		return "", kerrors.NewConfigError(fmt.Sprintf("unknown configuration key %s", key), nil)
	}

	if value == "" {
		return "", notSet(key)
	}
	return value, nil
}

// EnvProvider serves values from environment variables.
type EnvProvider struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{Lookup: os.LookupEnv}
}

func (p *EnvProvider) Get(key string) (string, error) {
	var name string
	switch key {
	case KeyEnabled:
		name = EnvEnabled
	case KeySettings:
		name = EnvSettings
	case KeyDNSRefreshInterval:
		name = EnvDNSRefreshInterval
	default:
		return "", notSet(key)
	}

	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(name)
	if !ok || value == "" {
		return "", notSet(key)
	}
	return value, nil
}

// ChainProvider asks each provider in order and returns the first value that is set.
type ChainProvider struct {
	providers []Provider
}

func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

func (p *ChainProvider) Get(key string) (string, error) {
	for _, provider := range p.providers {
		value, err := provider.Get(key)
		if err == nil {
			return value, nil
		}
		if !IsNotSet(err) {
			return "", err
		}
	}
	return "", notSet(key)
}

// IsEnabled interprets the enabled flag. The explicit grammar accepts "true" in
// any letter case; the legacy grammar accepts only the exact lowercase "true".
func IsEnabled(value string, grammar rules.Grammar) bool {
	if grammar == rules.GrammarLegacy {
		return value == "true"
	}
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// RefreshIntervalMinutes reads the hostname refresh interval from p.
// It returns def when the value is missing or not a positive integer.
func RefreshIntervalMinutes(p Provider, def int) int {
	value, err := p.Get(KeyDNSRefreshInterval)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
