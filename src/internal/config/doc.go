// Package config handles configuration file parsing and validation for keen-iprules.
//
// The configuration is a TOML file with the following sections:
//   - [general]   feature switch, rule settings string, grammar and backend selection
//   - [hostnames] host names resolved periodically into additional ALLOW rules
//   - [iptables]  table and chain names used by the iptables backend
//   - [nftables]  family, table and chain names used by the nftables backend
//   - [api]       HTTP API listener
//
// Loading and validating a configuration file:
//
//	cfg, err := config.LoadConfig("/etc/keen-iprules.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ValidateConfig(); err != nil {
//	    log.Fatal(err)
//	}
//
// The engine does not read the file directly. It receives values through a
// Provider, keyed as "IPAddressRules.Enabled", "IPAddressRules.Settings" and
// "IPAddressRules.DnsRefreshInterval". An EnvProvider chained in front of the
// FileProvider lets the environment override the file:
//
//	p := config.NewChainProvider(config.NewEnvProvider(), config.NewFileProvider(cfg))
//	settings, err := p.Get(config.KeySettings)
package config
