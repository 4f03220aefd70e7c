package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	kerrors "github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
)

// LoadConfig reads and decodes the configuration file and fills in defaults.
// It does not validate; call ValidateConfig for that.
func LoadConfig(configPath string) (*Config, error) {
	configFile := filepath.Clean(configPath)

	if !filepath.IsAbs(configFile) {
		if path, err := filepath.Abs(configFile); err != nil {
			return nil, kerrors.NewConfigError("failed to get absolute path", err)
		} else {
			configFile = path
		}
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Errorf("Configuration file not found: %s", configFile)
		return nil, kerrors.NewConfigError(fmt.Sprintf("configuration file not found: %s", configFile), nil)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, kerrors.NewConfigError("failed to read config file", err)
	}

	config, err := ParseConfig(content)
	if err != nil {
		return nil, err
	}
	config._absConfigFilePath = configFile

	log.Debugf("Configuration file path: %s", configFile)

	return config, nil
}

// ParseConfig decodes TOML content and applies defaults.
func ParseConfig(content []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(content, &config); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			log.Errorf("%s", derr.String())
			row, col := derr.Position()
			log.Errorf("Error at line %d, column %d", row, col)
			return nil, kerrors.NewConfigError(fmt.Sprintf("failed to parse config file at line %d, column %d", row, col), err)
		}
		return nil, kerrors.NewConfigError("failed to parse config file", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills in missing sections and zero values. The enabled flag
// and the settings string are left alone: their absence is meaningful.
func (c *Config) ApplyDefaults() {
	if c.General == nil {
		c.General = &GeneralConfig{}
	}
	if c.General.Grammar == "" {
		c.General.Grammar = DefaultGrammar
	}
	if c.General.Backend == "" {
		c.General.Backend = DefaultBackend
	}
	if c.General.StoreTimeoutSeconds == 0 {
		c.General.StoreTimeoutSeconds = DefaultStoreTimeoutSeconds
	}
	if c.General.ConfigCheckIntervalSeconds == 0 {
		c.General.ConfigCheckIntervalSeconds = DefaultConfigCheckIntervalSeconds
	}

	if c.Hostnames == nil {
		c.Hostnames = &HostnamesConfig{}
	}
	if c.Hostnames.Port == "" {
		c.Hostnames.Port = DefaultHostnamePort
	}
	if c.Hostnames.RefreshIntervalMinutes == 0 {
		c.Hostnames.RefreshIntervalMinutes = DefaultRefreshIntervalMinutes
	}

	if c.IPTables == nil {
		c.IPTables = &IPTablesConfig{}
	}
	if c.NFTables == nil {
		c.NFTables = &NFTablesConfig{}
	}

	if c.API == nil {
		c.API = &APIConfig{}
	}
	if c.API.Listen == "" {
		c.API.Listen = DefaultAPIListen
	}
}

// SerializeConfig encodes the configuration back to TOML.
func (c *Config) SerializeConfig() (*bytes.Buffer, error) {
	buf := bytes.Buffer{}
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return &buf, nil
}
