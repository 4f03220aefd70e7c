package rules

import (
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	// DefaultPrefix is the reserved prefix carried by every rule name this program creates.
	DefaultPrefix = "keen-iprules"

	nameTemplate = "{{prefix}} Action {{action}} IP/Host {{address}} on Port {{port}}"
)

var DefaultNamer = NewNamer(DefaultPrefix)

// Namer renders canonical rule names under a fixed prefix.
type Namer struct {
	prefix string
	tmpl   *fasttemplate.Template
}

// NewNamer creates a namer whose names all start with prefix.
func NewNamer(prefix string) *Namer {
	return &Namer{
		prefix: prefix,
		tmpl:   fasttemplate.New(nameTemplate, "{{", "}}"),
	}
}

// Prefix returns the naming prefix.
func (n *Namer) Prefix() string {
	return n.prefix
}

// Owns reports whether name was rendered by this namer.
func (n *Namer) Owns(name string) bool {
	return strings.HasPrefix(name, n.prefix+" ")
}

// Name renders the canonical name of r. Sentinels render as "(any)", so they
// can never collide with a literal value.
func (n *Namer) Name(r Rule) string {
	address := r.RemoteAddress
	if r.IsAnyAddress() {
		address = anyRendering
	}
	port := r.Port
	if r.IsAnyPort() {
		port = anyRendering
	}

	name := n.tmpl.ExecuteString(map[string]interface{}{
		"prefix":  n.prefix,
		"action":  string(r.Action),
		"address": address,
		"port":    port,
	})
	if r.NameSuffix != "" {
		name += " (" + r.NameSuffix + ")"
	}
	return name
}
