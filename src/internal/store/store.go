package store

import (
	stderrors "errors"
	"fmt"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

// Wildcard is the value of an Entry field that matches anything.
const Wildcard = "*"

// ErrRuleNotFound is wrapped by errors returned for names that are absent from the store.
var ErrRuleNotFound = stderrors.New("rule not found")

// Entry is one rule currently present in a filter store.
type Entry struct {
	Name          string       `json:"name"`
	Enabled       bool         `json:"enabled"`
	LocalPort     string       `json:"local_port"`
	RemoteAddress string       `json:"remote_address"`
	Action        rules.Action `json:"action,omitempty"`
	Protocol      string       `json:"protocol"`
}

// FilterStore is the capability set the engine needs from a packet filter.
// Implementations connect lazily on first use and keep the connection.
type FilterStore interface {
	// ListRules returns all entries, enabled and disabled, in table order.
	ListRules() ([]Entry, error)
	// AddRule creates an enabled entry.
	AddRule(name string, action rules.Action, port, remoteAddress string) error
	// RemoveRule deletes the entry with the given name.
	RemoveRule(name string) error
	// SetEnabled enables or disables the entry with the given name.
	SetEnabled(name string, enabled bool) error
}

// ParkedLister is implemented by stores that can report which entries they
// disabled, so a restarted engine can rebuild its ledger.
type ParkedLister interface {
	ParkedRules() ([]string, error)
}

// IsNotFound reports whether err means the named entry was absent.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrRuleNotFound)
}

// MaxRuleNameLen is the longest rule name the packet filters can store.
// iptables comments and nftables user data both hold at most 255 bytes.
const MaxRuleNameLen = 255

func checkNameLength(name string) error {
	if len(name) > MaxRuleNameLen {
		return errors.NewStoreError(fmt.Sprintf("rule name %q is %d bytes long, at most %d are allowed", name, len(name), MaxRuleNameLen), nil)
	}
	return nil
}

func notFoundError(name string) error {
	return errors.NewStoreError(fmt.Sprintf("rule %q", name), ErrRuleNotFound)
}

func entryPort(port string) string {
	if port == rules.AnyPort || port == "" {
		return Wildcard
	}
	return port
}

func entryAddress(address string) string {
	if address == rules.AnyAddress || address == "" {
		return Wildcard
	}
	return address
}
