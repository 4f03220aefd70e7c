package rules

import (
	"fmt"
	"strings"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
)

// Grammar selects the rule definition syntax.
type Grammar string

const (
	// GrammarExplicit is "ACTION PORT ADDR,ADDR;ACTION PORT ADDR".
	GrammarExplicit Grammar = "explicit"
	// GrammarLegacy is "PORT=ADDR,ADDR;PORT=ADDR"; every rule is ALLOW.
	GrammarLegacy Grammar = "legacy"
)

const (
	definitionSeparator = ";"
	addressSeparator    = ","
	legacySeparator     = "="
)

// Parser converts a settings string into an ordered list of rules.
type Parser struct {
	Grammar Grammar
	// StrictActions rejects unknown action tokens instead of treating them as ALLOW.
	StrictActions bool
	Logger        *log.Logger
}

// NewParser creates a parser for the given grammar.
func NewParser(grammar Grammar, strictActions bool) *Parser {
	return &Parser{Grammar: grammar, StrictActions: strictActions}
}

// Parse converts settings into rules in definition order. Rules with the same
// canonical name are kept once. Any malformed definition fails the whole call
// and no rules are returned.
func (p *Parser) Parse(settings string) ([]Rule, error) {
	var result []Rule
	seen := make(map[string]bool)

	for _, definition := range splitNonEmpty(settings, definitionSeparator) {
		var (
			parsed []Rule
			err    error
		)
		switch p.Grammar {
		case GrammarLegacy:
			parsed, err = p.parseLegacy(definition)
		case GrammarExplicit, "":
			parsed, err = p.parseExplicit(definition)
		default:
			return nil, errors.NewParseError(fmt.Sprintf("unknown grammar %q", p.Grammar), nil)
		}
		if err != nil {
			return nil, err
		}

		for _, rule := range parsed {
			name := rule.CanonicalName()
			if seen[name] {
				continue
			}
			seen[name] = true
			result = append(result, rule)
		}
	}

	return result, nil
}

// parseExplicit handles "ACTION PORT ADDRLIST".
func (p *Parser) parseExplicit(definition string) ([]Rule, error) {
	tokens := strings.Fields(definition)
	if len(tokens) != 3 {
		return nil, errors.NewParseError(
			fmt.Sprintf("invalid format for rule %q: expected ACTION PORT ADDRESSES, got %d token(s)", definition, len(tokens)), nil)
	}

	action, ok := ParseAction(tokens[0])
	if !ok {
		if p.StrictActions {
			return nil, errors.NewParseError(fmt.Sprintf("invalid action %q in rule %q", tokens[0], definition), nil)
		}
		p.logger().Warnf("Unknown action %q in rule %q, treating it as %s", tokens[0], definition, ActionAllow)
	}

	return buildRules(definition, action, tokens[1], tokens[2])
}

// parseLegacy handles "PORT=ADDRLIST".
func (p *Parser) parseLegacy(definition string) ([]Rule, error) {
	port, addresses, ok := strings.Cut(definition, legacySeparator)
	if !ok || strings.Contains(addresses, legacySeparator) {
		return nil, errors.NewParseError(
			fmt.Sprintf("invalid format for restriction %q: expected PORT=ADDRESSES", definition), nil)
	}
	port = strings.TrimSpace(port)
	addresses = strings.TrimSpace(addresses)
	if port == "" || addresses == "" {
		return nil, errors.NewParseError(
			fmt.Sprintf("invalid format for restriction %q: expected PORT=ADDRESSES", definition), nil)
	}

	return buildRules(definition, ActionAllow, port, addresses)
}

func buildRules(definition string, action Action, port, addressList string) ([]Rule, error) {
	addresses := splitNonEmpty(addressList, addressSeparator)
	if len(addresses) == 0 {
		return nil, errors.NewParseError(fmt.Sprintf("no addresses in rule %q", definition), nil)
	}

	parsed := make([]Rule, 0, len(addresses))
	for _, address := range addresses {
		rule := Rule{
			Action:        action,
			Port:          normalizePort(port),
			RemoteAddress: normalizeAddress(address),
		}
		if err := rule.Validate(); err != nil {
			return nil, errors.NewParseError(fmt.Sprintf("invalid rule %q", definition), err)
		}
		parsed = append(parsed, rule)
	}
	return parsed, nil
}

func (p *Parser) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// splitNonEmpty splits s by sep, trimming parts and dropping empty ones.
func splitNonEmpty(s, sep string) []string {
	var parts []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// Ports returns the distinct ports referenced by rules, in first-seen order.
func Ports(rules []Rule) []string {
	var ports []string
	seen := make(map[string]bool)
	for _, rule := range rules {
		if seen[rule.Port] {
			continue
		}
		seen[rule.Port] = true
		ports = append(ports, rule.Port)
	}
	return ports
}
