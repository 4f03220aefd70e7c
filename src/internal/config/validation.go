package config

import (
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

var chainNameRegexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,28}$`)

// getValidationMessage returns a human-readable message for a validation error
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "port_or_any":
		return "must be a port (1-65535), a port range (8000-8080) or \"any\""
	case "dns_name":
		return "must be a valid host name (IP literals belong in general.settings)"
	case "dns_server":
		return "must be an IP address or ip:port (IPv6 must be in square brackets when a port is given)"
	case "chain_name":
		return "must start with a letter and contain only letters, digits, '_' and '-' (max 29 characters)"
	case "hostport_or_empty":
		return "must be in format 'host:port' or empty"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ValidationError represents a single validation error with context
type ValidationError struct {
	ItemName  string // Name of the offending item, e.g. a host name (optional)
	FieldPath string // Dot-notation field path (e.g., "general.grammar", "hostnames.port")
	Message   string // Human-readable error message
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n", len(ve)))
	for i, err := range ve {
		if err.ItemName != "" {
			sb.WriteString(fmt.Sprintf("  %d. [%s] %s: %s\n", i+1, err.ItemName, err.FieldPath, err.Message))
		} else {
			sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.FieldPath, err.Message))
		}
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("port_or_any", validatePortOrAny); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("dns_name", validateDNSName); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("dns_server", validateDNSServer); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("chain_name", validateChainName); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("hostport_or_empty", validateHostPortOrEmpty); err != nil {
		panic(err)
	}

	// Register function to get field name from "toml" tag
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validator: single port, port range or the "any" sentinel
func validatePortOrAny(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if strings.EqualFold(value, rules.AnyPort) || value == "*" {
		return true
	}
	_, _, err := utils.ParsePortRange(value)
	return err == nil
}

// Custom validator: resolvable host name, not an IP literal
func validateDNSName(fl validator.FieldLevel) bool {
	return utils.IsHostname(fl.Field().String())
}

// Custom validator: ip or ip:port ([v6]:port)
func validateDNSServer(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if ip := net.ParseIP(value); ip != nil {
		return true
	}
	host, port, err := net.SplitHostPort(value)
	if err != nil {
		return false
	}
	return net.ParseIP(host) != nil && utils.IsValidPort(port)
}

// Custom validator: iptables/nftables chain or table name
func validateChainName(fl validator.FieldLevel) bool {
	return chainNameRegexp.MatchString(fl.Field().String())
}

// Custom validator: host:port format or empty
func validateHostPortOrEmpty(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, _, err := net.SplitHostPort(value)
	return err == nil
}
