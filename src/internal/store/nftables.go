package store

const (
	DefaultNFTablesFamily       = "inet"
	DefaultNFTablesTable        = "filter"
	DefaultNFTablesChain        = "input"
	DefaultNFTablesParkingChain = "keen_iprules_off"
)

// NFTablesConfig selects the chain whose rules form the store.
type NFTablesConfig struct {
	// Family is one of "inet", "ip" or "ip6".
	Family string
	Table  string
	// Chain is created as an input filter base chain when missing.
	Chain        string
	ParkingChain string
}

func (c NFTablesConfig) withDefaults() NFTablesConfig {
	if c.Family == "" {
		c.Family = DefaultNFTablesFamily
	}
	if c.Table == "" {
		c.Table = DefaultNFTablesTable
	}
	if c.Chain == "" {
		c.Chain = DefaultNFTablesChain
	}
	if c.ParkingChain == "" {
		c.ParkingChain = DefaultNFTablesParkingChain
	}
	return c
}
