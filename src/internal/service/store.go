package service

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/config"
	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/resolver"
	"github.com/maksimkurb/keen-iprules/src/internal/store"
)

// NewFilterStore creates the backend selected by general.backend, bounded by
// general.store_timeout_seconds.
func NewFilterStore(cfg *config.Config, logger *log.Logger) (store.FilterStore, error) {
	var (
		s   store.FilterStore
		err error
	)

	switch cfg.General.Backend {
	case config.BackendIPTables, "":
		s = store.NewIPTablesStore(store.IPTablesConfig{
			Table:        cfg.IPTables.Table,
			Chain:        cfg.IPTables.Chain,
			ParkingChain: cfg.IPTables.ParkingChain,
			IPv6:         cfg.IPTables.IPv6,
		}, logger)
	case config.BackendNFTables:
		s, err = store.NewNFTablesStore(store.NFTablesConfig{
			Family:       cfg.NFTables.Family,
			Table:        cfg.NFTables.Table,
			Chain:        cfg.NFTables.Chain,
			ParkingChain: cfg.NFTables.ParkingChain,
		}, logger)
		if err != nil {
			return nil, err
		}
	case config.BackendMemory:
		s = store.NewMemoryStore()
	default:
		return nil, errors.NewConfigError(fmt.Sprintf("unknown backend %q", cfg.General.Backend), nil)
	}

	return store.WithTimeout(s, time.Duration(cfg.General.StoreTimeoutSeconds)*time.Second), nil
}

// storeKey identifies the store configuration; a different key needs a new store.
func storeKey(cfg *config.Config) string {
	return fmt.Sprintf("%s|%d|%+v|%+v", cfg.General.Backend, cfg.General.StoreTimeoutSeconds, *cfg.IPTables, *cfg.NFTables)
}

// newResolver builds the DNS resolver for the hostnames section. When no
// resolver can be built every lookup fails with the construction error.
func newResolver(cfg *config.Config, logger *log.Logger) resolver.Resolver {
	if len(cfg.Hostnames.Hosts) == 0 {
		return unavailableResolver{err: fmt.Errorf("no host names configured")}
	}
	r, err := resolver.NewDNSResolver(cfg.Hostnames.DNSServers, cfg.Hostnames.IPv6, logger)
	if err != nil {
		logger.Errorf("Host name rules are unavailable: %v", err)
		return unavailableResolver{err: err}
	}
	return r
}

func resolverKey(cfg *config.Config) string {
	return fmt.Sprintf("%v|%v|%v", cfg.Hostnames.DNSServers, cfg.Hostnames.IPv6, len(cfg.Hostnames.Hosts) > 0)
}

type unavailableResolver struct {
	err error
}

func (r unavailableResolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	return nil, r.err
}
