//go:build !linux

package store

import (
	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
)

// NewNFTablesStore is only available on Linux.
func NewNFTablesStore(cfg NFTablesConfig, logger *log.Logger) (FilterStore, error) {
	return nil, errors.NewStoreError("nftables backend is only supported on linux", nil)
}
