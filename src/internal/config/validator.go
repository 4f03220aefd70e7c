package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

// ValidateConfig validates the entire configuration and returns all validation errors
func (c *Config) ValidateConfig() error {
	var validationErrors ValidationErrors

	if c.General == nil {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "general",
			Message:   "configuration must contain 'general' section",
		})
		return validationErrors
	}

	if err := validate.Struct(c.General); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err, "general", "")...)
	}
	validationErrors = append(validationErrors, c.validateSettings()...)

	if c.Hostnames != nil {
		if err := validate.Struct(c.Hostnames); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, "hostnames", "")...)
		}
		validationErrors = append(validationErrors, c.validateHosts()...)
	}
	if c.IPTables != nil {
		if err := validate.Struct(c.IPTables); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, "iptables", "")...)
		}
	}
	if c.NFTables != nil {
		if err := validate.Struct(c.NFTables); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, "nftables", "")...)
		}
	}
	if c.API != nil {
		if err := validate.Struct(c.API); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, "api", "")...)
		}
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

// validateSettings checks that the settings string (inline or from file) parses
// with the configured grammar.
func (c *Config) validateSettings() ValidationErrors {
	var validationErrors ValidationErrors

	if c.General.Settings != "" && c.General.SettingsFile != "" {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "general.settings_file",
			Message:   "'settings' and 'settings_file' are mutually exclusive",
		})
		return validationErrors
	}

	settings := c.General.Settings
	fieldPath := "general.settings"
	if path := c.SettingsFilePath(); path != "" {
		fieldPath = "general.settings_file"
		content, err := utils.ReadFileLimited(path, MaxSettingsFileSize)
		if err != nil {
			validationErrors = append(validationErrors, ValidationError{
				FieldPath: fieldPath,
				Message:   fmt.Sprintf("cannot read settings file %s: %v", path, err),
			})
			return validationErrors
		}
		settings = strings.TrimSpace(string(content))
	}

	if settings == "" {
		return nil
	}

	parser := rules.NewParser(c.Grammar(), c.General.StrictActions)
	parser.Logger = log.Discard()
	if _, err := parser.Parse(settings); err != nil {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: fieldPath,
			Message:   err.Error(),
		})
	}

	return validationErrors
}

func (c *Config) validateHosts() ValidationErrors {
	var validationErrors ValidationErrors

	seen := make(map[string]bool)
	for _, host := range c.Hostnames.Hosts {
		normalized := utils.NormalizeHostname(host)
		if seen[normalized] {
			validationErrors = append(validationErrors, ValidationError{
				ItemName:  host,
				FieldPath: "hostnames.hosts",
				Message:   fmt.Sprintf("duplicate host name: %s", host),
			})
		}
		seen[normalized] = true
	}

	return validationErrors
}

// convertValidatorErrors converts validator.ValidationErrors to our ValidationErrors format
func convertValidatorErrors(err error, fieldPrefix string, itemName string) ValidationErrors {
	var validationErrors ValidationErrors

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			fieldPath := fieldPrefix
			if e.Field() != "" {
				// e.Field() returns the TOML tag name because of the registered TagNameFunc
				if fieldPrefix != "" {
					fieldPath = fieldPrefix + "." + e.Field()
				} else {
					fieldPath = e.Field()
				}
			}

			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: fieldPath,
				Message:   getValidationMessage(e),
			})
		}
	}

	return validationErrors
}
